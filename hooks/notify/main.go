// Package main provides a desktop notification hook. It announces
// recognitions and gallery changes with notify-send on Linux and
// AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/ayusman/drishti/internal/hook"
)

// notifyConfig is the manifest's config block.
type notifyConfig struct {
	Title string `json:"title"`
	// Sound asks macOS to play the default notification sound.
	Sound bool `json:"sound"`
}

// notifier displays one notification.
type notifier func(title, body string, sound bool) error

func main() {
	resp := handle(os.Stdin, notifierFor(runtime.GOOS))
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, notify notifier) hook.Response {
	var req hook.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return hook.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	cfg := notifyConfig{Title: "Drishti"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return hook.Response{Error: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	body, err := message(req)
	if err != nil {
		return hook.Response{Error: err.Error()}
	}
	if err := notify(cfg.Title, body, cfg.Sound); err != nil {
		return hook.Response{Error: fmt.Sprintf("notification failed: %v", err)}
	}

	data, _ := json.Marshal(map[string]string{"message": body})
	return hook.Response{Success: true, Data: data}
}

// message renders the notification text for req.
func message(req hook.Request) (string, error) {
	switch req.Event {
	case hook.EventRecognized:
		return fmt.Sprintf("%s is here (distance %.2f)", req.Name, req.Distance), nil
	case hook.EventRegistered:
		return fmt.Sprintf("%s was added to the gallery", req.Name), nil
	case hook.EventRemoved:
		return fmt.Sprintf("%s was removed from the gallery", req.Name), nil
	default:
		return "", fmt.Errorf("unknown event: %s", req.Event)
	}
}

func notifierFor(goos string) notifier {
	switch goos {
	case "darwin":
		return func(title, body string, sound bool) error {
			script := fmt.Sprintf("display notification %q with title %q", body, title)
			if sound {
				script += ` sound name "default"`
			}
			return run("osascript", "-e", script)
		}
	default:
		return func(title, body string, _ bool) error {
			return run("notify-send", "--app-name=drishti", title, body)
		}
	}
}

// run executes a command and returns any error with its output.
func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
