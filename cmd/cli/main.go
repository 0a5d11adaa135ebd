package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "login":
		login(args)
	case "logout":
		logout()
	case "submit":
		submitCode(args)
	case "state":
		showState()
	case "progress":
		showProgress()
	case "badges":
		listBadges()
	case "symbols":
		listSymbols()
	case "resolve":
		resolveCrisis(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	password := fs.String("password", "", "shared family password")

	fs.Parse(args)

	if *password == "" {
		fmt.Println("Error: password is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Println("✓ Family session opened")
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logout() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func submitCode(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	day := fs.Int("day", 0, "mission day number")
	code := fs.String("code", "", "secret code")

	fs.Parse(args)

	if *day <= 0 || *code == "" {
		fmt.Println("Error: day and code are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"code": *code}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/quests/%d/submit", getAPIURL(), *day), bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ Submission failed: %v\n", result)
		return
	}
	if success, _ := result["success"].(bool); !success {
		fmt.Printf("✗ Wrong code for day %d\n", *day)
		return
	}
	if isNew, _ := result["isNewCompletion"].(bool); isNew {
		fmt.Printf("✓ Day %d completed!\n", *day)
	} else {
		fmt.Printf("✓ Day %d was already completed\n", *day)
	}
}

func showState() {
	var state map[string]interface{}
	if !getJSON("/state", &state) {
		return
	}

	fmt.Printf("Completed days: %v\n", state["completedDays"])
	fmt.Printf("Progression:    %.0f%%\n", state["progression"])
	fmt.Printf("Resolved crises: %v\n", state["resolvedCrises"])
	fmt.Printf("Solved challenges: %v\n", state["solvedChallenges"])
}

func showProgress() {
	var progress map[string]interface{}
	if !getJSON("/progress", &progress) {
		return
	}
	fmt.Printf("Progression: %.0f%%\n", progress["percentage"])
	fmt.Printf("Completed days: %v\n", progress["completedDays"])
}

func listBadges() {
	var badges []map[string]interface{}
	if !getJSON("/badges", &badges) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tICON\tLABEL")
	for _, b := range badges {
		fmt.Fprintf(w, "%v\t%v\t%v\n", b["id"], b["icon"], b["label"])
	}
	w.Flush()
}

func listSymbols() {
	var symbols []map[string]interface{}
	if !getJSON("/symbols", &symbols) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tICON\tCOLOR\tDESCRIPTION")
	for _, s := range symbols {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", s["id"], s["icon"], s["color"], s["description"])
	}
	w.Flush()
}

func resolveCrisis(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: kodekalender resolve <crisis-id>")
		return
	}

	req, _ := http.NewRequest("POST", getAPIURL()+"/crises/"+args[0]+"/resolve", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		fmt.Printf("✓ Crisis %s resolved\n", args[0])
	} else {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Resolve failed: %v\n", result)
	}
}

// Helper functions
func getJSON(path string, out interface{}) bool {
	req, _ := http.NewRequest("GET", getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Request failed: %v\n", result)
		return false
	}
	json.NewDecoder(resp.Body).Decode(out)
	return true
}

func getAPIURL() string {
	if url := os.Getenv("KODEKALENDER_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.kodekalender/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.kodekalender", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Kodekalender CLI

Usage:
  kodekalender <command> [options]

Commands:
  login      Open a family session (-password)
  logout     Forget the stored session token
  submit     Submit a mission code (-day, -code)
  state      Show the full game state
  progress   Show season progression
  badges     List earned badges
  symbols    List collected symbols
  resolve    Resolve a crisis by id
  help       Show this help message

Environment Variables:
  KODEKALENDER_API    API endpoint (default: http://localhost:8080/api)

Examples:
  kodekalender login -password vintergaten
  kodekalender submit -day 1 -code nissekode2025
  kodekalender state
`)
}
