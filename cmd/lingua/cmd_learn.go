package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/lingua/internal/config"
	"github.com/felixgeelhaar/lingua/internal/conversation"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/progress"
)

// currentUser is the learner from config.yaml, overridable with LINGUA_USER
func currentUser() string {
	if id := os.Getenv("LINGUA_USER"); id != "" {
		return id
	}
	if cfg, err := config.LoadLocalConfig(); err == nil && cfg.User.ID != "" {
		return cfg.User.ID
	}
	return "me"
}

func userPath(suffix string) string {
	return "/v1/users/" + url.PathEscape(currentUser()) + suffix
}

// cmdTopics lists topics with the learner's completion
func cmdTopics(args []string) error {
	path := "/v1/topics"
	if len(args) > 0 {
		path += "?level=" + url.QueryEscape(args[0])
	}

	var resp struct {
		Topics []domain.Topic `json:"topics"`
	}
	if err := getJSON(path, &resp); err != nil {
		return err
	}

	if len(resp.Topics) == 0 {
		fmt.Println("No topics found.")
		return nil
	}

	level := 0
	for _, t := range resp.Topics {
		if t.Level != level {
			level = t.Level
			fmt.Printf("\nLevel %d\n-------\n", level)
		}

		var view progress.TopicView
		pct := 0
		if err := getJSON(userPath("/topics/"+url.PathEscape(t.ID)), &view); err == nil {
			pct = view.Percentage
		}
		fmt.Printf("  %-22s %-24s %s %3d%%\n", t.ID, t.Title, renderProgressBar(float64(pct)/100, 10), pct)
	}
	return nil
}

// cmdProgress shows the learner overview
func cmdProgress() error {
	var s progress.Summary
	if err := getJSON(userPath("/progress"), &s); err != nil {
		return err
	}

	fmt.Printf("Progress for %s\n", s.UserID)
	fmt.Println("==================")
	fmt.Printf("Level:        %d %s %d/%d XP\n", s.Level.Level,
		renderProgressBar(float64(s.Level.Percent)/100, 20), s.Level.CurrentXP, s.Level.NextXP)
	fmt.Printf("Total XP:     %d\n", s.Level.TotalXP)
	fmt.Printf("Curriculum:   %s\n", s.Profile.LevelTag())

	streak := fmt.Sprintf("%d days (best %d)", s.Streak.Current, s.Streak.Longest)
	if !s.StreakActive && s.Streak.Current > 0 {
		streak += " - practise today to keep it"
	}
	fmt.Printf("Streak:       %s\n", streak)
	fmt.Printf("Topics:       %d started, %d completed\n", s.TopicsStarted, s.TopicsCompleted)
	fmt.Printf("Phrases:      %d learned, %d in review, %d due\n", s.PhrasesLearned, s.ReviewItems, s.ItemsDue)
	fmt.Printf("Today:        %d XP, %d min, %d messages\n", s.Today.XPEarned, s.Today.StudyMinutes, s.Today.Messages)
	if s.AvgPronunciation > 0 {
		fmt.Printf("Pronunciation: %d%% average\n", s.AvgPronunciation)
	}

	if len(s.Achievements) > 0 {
		fmt.Println("\nAchievements")
		fmt.Println("------------")
		for _, a := range s.Achievements {
			fmt.Printf("  🏆 %s - %s\n", a.Title, a.Description)
		}
	}
	return nil
}

func cmdCheckIn() error {
	var resp struct {
		Extended bool `json:"extended"`
	}
	if err := postJSON(userPath("/checkin"), struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Extended {
		fmt.Println("✓ Daily bonus earned. See you tomorrow!")
	} else {
		fmt.Println("Already checked in today.")
	}
	return nil
}

// cmdReview walks through due phrases and grades each one
func cmdReview(args []string) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum phrases to review")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var due struct {
		Items []domain.ReviewItem `json:"items"`
	}
	if err := getJSON(userPath(fmt.Sprintf("/reviews/due?limit=%d", *limit)), &due); err != nil {
		return err
	}
	if len(due.Items) == 0 {
		fmt.Println("Nothing due. Come back later!")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%d phrases to review. Grade each 0 (forgot) to 5 (perfect).\n\n", len(due.Items))

	for i, item := range due.Items {
		fmt.Printf("[%d/%d] %s\n", i+1, len(due.Items), item.Phrase)
		fmt.Print("  press Enter to reveal...")
		readLine(reader)
		fmt.Printf("  → %s\n", item.Translation)

		quality := -1
		for quality < 0 {
			fmt.Print("  grade (0-5, q to stop): ")
			raw := readLine(reader)
			if raw == "q" {
				return nil
			}
			q, err := strconv.Atoi(raw)
			if err != nil || q < 0 || q > 5 {
				continue
			}
			quality = q
		}

		var next domain.ReviewItem
		path := userPath("/reviews/" + url.PathEscape(item.ID))
		if err := postJSON(path, map[string]int{"quality": quality}, &next); err != nil {
			return err
		}
		fmt.Printf("  next review in %d day(s)\n\n", next.Interval)
	}

	fmt.Println("✓ Review complete")
	return nil
}

type messageResponse struct {
	Outcome conversation.Outcome `json:"outcome"`
	Session conversation.View    `json:"session"`
}

// cmdChat runs a conversation with the tutor in the terminal
func cmdChat(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lingua chat <topic>")
	}

	var view conversation.View
	if err := postJSON(userPath("/sessions"), map[string]string{"topic_id": args[0]}, &view); err != nil {
		return err
	}
	for _, m := range view.Messages {
		printMessage(m)
	}
	fmt.Println("(type /leave to finish, /translate <text> for help)")

	base := "/v1/sessions/" + url.PathEscape(view.ID)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("you> ")
		line, err := reader.ReadString('\n')
		text := strings.TrimSpace(line)
		if err != nil && text == "" {
			text = "/leave"
		}

		switch {
		case text == "":
			continue
		case text == "/leave":
			done, err := leaveChat(base, reader)
			if err != nil || done {
				return err
			}
			continue
		case strings.HasPrefix(text, "/translate "):
			if err := translate(strings.TrimPrefix(text, "/translate "), ""); err != nil {
				fmt.Printf("  ⚠ %v\n", err)
			}
			continue
		}

		var resp messageResponse
		if err := postJSON(base+"/messages", map[string]string{"text": text}, &resp); err != nil {
			fmt.Printf("  ⚠ %v\n", err)
			continue
		}
		if resp.Outcome.Reply != nil {
			printMessage(*resp.Outcome.Reply)
		}
		if resp.Outcome.Notice != nil {
			printMessage(*resp.Outcome.Notice)
		}
	}
}

// leaveChat reports whether the conversation ended
func leaveChat(base string, reader *bufio.Reader) (bool, error) {
	var left struct {
		Decision string                       `json:"decision"`
		Result   *conversation.TeardownResult `json:"result"`
	}
	if err := postJSON(base+"/leave", struct{}{}, &left); err != nil {
		return false, err
	}

	if left.Decision == conversation.LeaveNeedsConfirmation.String() {
		fmt.Print("The lesson isn't finished and you will not earn XP. Leave anyway? [y/N] ")
		discard := strings.EqualFold(readLine(reader), "y")
		if err := postJSON(base+"/leave/confirm", map[string]bool{"discard": discard}, nil); err != nil {
			return false, err
		}
		if !discard {
			return false, nil
		}
		fmt.Println("Session ended.")
		return true, nil
	}

	if left.Result != nil && left.Result.Saved {
		fmt.Println("✓ Lesson complete. Progress saved.")
	} else {
		fmt.Println("Session ended.")
	}
	return true, nil
}

func printMessage(m domain.Message) {
	switch m.Sender {
	case domain.SenderTutor:
		fmt.Printf("tutor> %s\n", m.Text)
		if m.Translation != "" {
			fmt.Printf("       (%s)\n", m.Translation)
		}
	case domain.SenderSystem:
		fmt.Printf("  * %s\n", m.Text)
	default:
		fmt.Printf("you> %s\n", m.Text)
	}
}

func cmdTranslate(args []string) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	target := fs.String("to", "", "target language (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: lingua translate [-to lang] <text>")
	}
	return translate(strings.Join(fs.Args(), " "), *target)
}

func translate(text, target string) error {
	var resp struct {
		Translation string `json:"translation"`
	}
	if err := postJSON("/v1/translate", map[string]string{"text": text, "target": target}, &resp); err != nil {
		return err
	}
	fmt.Printf("  → %s\n", resp.Translation)
	return nil
}

// cmdImport sends a spreadsheet to the daemon's catalog importer
func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	sheet := fs.String("sheet", "", "xlsx sheet name (default: first sheet)")
	create := fs.Bool("create-topics", false, "create topics that are not in the catalog")
	level := fs.Int("level", 0, "level for created topics without a level column")
	noHeader := fs.Bool("no-header", false, "the first row holds data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lingua import [flags] <file.xlsx|file.csv>")
	}

	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	var result struct {
		Rows          int      `json:"rows"`
		Added         int      `json:"added"`
		Skipped       int      `json:"skipped"`
		TopicsCreated int      `json:"topics_created"`
		Errors        []string `json:"errors"`
		Persisted     bool     `json:"persisted"`
	}
	err = postJSON("/v1/catalog/import", map[string]any{
		"path":          path,
		"sheet":         *sheet,
		"create_topics": *create,
		"default_level": *level,
		"no_header":     *noHeader,
	}, &result)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %d rows read, %d phrases added, %d skipped, %d topics created\n",
		result.Rows, result.Added, result.Skipped, result.TopicsCreated)
	for _, e := range result.Errors {
		fmt.Printf("  ⚠ %s\n", e)
	}
	if result.Added > 0 && !result.Persisted {
		fmt.Println("Set catalog.dir in config.yaml to keep imported phrases across restarts.")
	}
	return nil
}
