package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// chattester drives a running PersonaGPT backend from the terminal for
// manual verification.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env file, using system environment: %v", err)
	}

	baseURL := flag.String("url", defaultBaseURL(), "backend base URL")
	sessionID := flag.String("session", "", "session identifier, blank uses the server default")
	message := flag.String("message", "", "send a single message and exit")
	timeout := flag.Duration("timeout", 90*time.Second, "request timeout")
	flag.Parse()

	client := &apiClient{
		baseURL: strings.TrimRight(*baseURL, "/"),
		session: *sessionID,
		http:    &http.Client{Timeout: *timeout},
	}

	if *message != "" {
		reply, err := client.send(*message)
		if err != nil {
			log.Fatalf("send failed: %v", err)
		}
		fmt.Println(reply)
		return
	}

	runInteractive(client)
}

func defaultBaseURL() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port != "" && !strings.Contains(port, ":") {
		return "http://localhost:" + port
	}
	return "http://localhost:8080"
}

func runInteractive(client *apiClient) {
	fmt.Println("PersonaGPT tester. Type a message, or /reset, /history, /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/reset":
			if err := client.reset(); err != nil {
				log.Printf("reset failed: %v", err)
				continue
			}
			fmt.Println("conversation reset")
		case line == "/history":
			turns, err := client.history()
			if err != nil {
				log.Printf("history failed: %v", err)
				continue
			}
			for _, turn := range turns {
				fmt.Printf("%s: %s\n", turn.Role, turn.Content)
			}
		default:
			reply, err := client.send(line)
			if err != nil {
				log.Printf("send failed: %v", err)
				continue
			}
			fmt.Println(reply)
		}
	}
}

type apiClient struct {
	baseURL string
	session string
	http    *http.Client
}

type transcriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *apiClient) send(message string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"sessionId": c.session,
		"message":   message,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.post("/api/chat/send", payload, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c *apiClient) reset() error {
	payload, err := json.Marshal(map[string]string{"sessionId": c.session})
	if err != nil {
		return err
	}
	return c.post("/api/chat/reset", payload, nil)
}

func (c *apiClient) history() ([]transcriptTurn, error) {
	query := url.Values{"sessionId": {c.session}}
	resp, err := c.http.Get(c.baseURL + "/api/chat/history?" + query.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Turns []transcriptTurn `json:"turns"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}

func (c *apiClient) post(path string, payload []byte, out interface{}) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(body, &failure); err == nil && failure.Error != "" {
			return fmt.Errorf("%s: %s", failure.Code, failure.Error)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
