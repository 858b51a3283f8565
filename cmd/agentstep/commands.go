package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kadirpekel/agentstep/backward"
	"github.com/kadirpekel/agentstep/chatloop"
	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/embedder"
	"github.com/kadirpekel/agentstep/feedback"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/observability"
	"github.com/kadirpekel/agentstep/reward"
	"github.com/kadirpekel/agentstep/tokens"
	"github.com/kadirpekel/agentstep/tools"
)

// ChatCmd drives the chat step loop over stdin/stdout: every line typed is
// one turn, "exit" quits. Feedback runs against an in-process chromem
// store: each exchange is learned after its turn, so later turns recall
// earlier ones as exemplars.
type ChatCmd struct {
	TopK int `help:"Feedback exemplars to recall per turn (0 disables)." default:"5"`
}

func (c *ChatCmd) Run(rc *runContext) error {
	setting, llm, err := rc.load()
	if err != nil {
		return err
	}

	store := feedback.NewChromemStore()
	embedCfg := config.LoadEmbedderFromEnv()
	var embed embedder.Client
	if ec, err := embedder.NewOpenAIClient(embedder.Config{
		APIKey:    embedCfg.APIKey,
		BaseURL:   embedCfg.BaseURL,
		Model:     embedCfg.Model,
		Dimension: embedCfg.Dimension,
		BatchSize: embedCfg.BatchSize,
	}); err != nil {
		slog.Warn("embedding client unavailable, feedback recall disabled", "error", err)
	} else {
		embed = ec
	}

	counter := tokens.NewCounter(setting.LLM.Model)
	loop := chatloop.New(llm, tools.NewRegistry(), store, embed, counter)
	memory := &fsm.Memory{}
	machine := &fsm.StateMachine{}

	// Bootstrap turn: surfaces the greeting before the first prompt.
	result, err := loop.Turn(rc.ctx, setting, machine, memory, chatloop.Input{FeedbackTopK: c.TopK})
	if err != nil {
		return err
	}
	fmt.Println(result.Response)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := loop.Turn(rc.ctx, setting, machine, memory, chatloop.Input{UserMessage: line, FeedbackTopK: c.TopK})
		if err != nil {
			return err
		}
		fmt.Println(result.Response)

		c.learnExchange(rc, store, embed, setting.AgentName, memory, line, result.Response)
	}

	snap := counter.Snapshot()
	fmt.Fprintf(os.Stderr, "%s\n", snap)
	return scanner.Err()
}

// learnExchange stores the completed turn as a feedback exemplar so the
// next turns can recall it. Failures only cost recall quality, so they are
// logged rather than ending the session.
func (c *ChatCmd) learnExchange(rc *runContext, store feedback.Store, embed embedder.Client, agentName string, memory *fsm.Memory, userMessage, response string) {
	if embed == nil {
		return
	}
	stateName := ""
	if last, ok := memory.Last(); ok {
		stateName = last.StateName
	}
	_, err := feedback.Learn(rc.ctx, store, embed, agentName, []feedback.Item{{
		ObservationName:    "user_message",
		ObservationContent: userMessage,
		ActionName:         "send_message_to_user",
		ActionContent:      response,
		StateName:          stateName,
	}})
	if err != nil {
		slog.Warn("learning feedback from turn failed", "error", err)
	}
}

// BackwardCmd runs the backward pipeline over a JSON file of QA lists and
// writes the resulting chapter structure and OSPA rows as JSON.
type BackwardCmd struct {
	Input       string `short:"i" required:"" help:"JSON file holding an array of QA lists." type:"path"`
	Output      string `short:"o" help:"Where to write the result JSON (default stdout)." type:"path"`
	MaxLevel    int    `help:"Maximum chapter structure depth (0 = unbounded)." default:"0"`
	Concurrency int    `help:"Fan-out cap across lists and chapters." default:"3"`
}

func (c *BackwardCmd) Run(rc *runContext) error {
	setting, llm, err := rc.load()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Input, err)
	}
	var qaLists []backward.QAList
	if err := json.Unmarshal(data, &qaLists); err != nil {
		return fmt.Errorf("parsing %s: %w", c.Input, err)
	}

	counter := tokens.NewCounter(setting.LLM.Model)
	pipeline := backward.New(llm, backward.Config{
		Concurrency: c.Concurrency,
		Metrics:     observability.NewMetrics(),
	})
	result, err := pipeline.Run(rc.ctx, qaLists, nil, c.MaxLevel, counter)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if c.Output == "" {
		fmt.Println(string(encoded))
	} else if err := os.WriteFile(c.Output, encoded, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s\n", counter.Snapshot())
	return nil
}

// RewardCmd judges candidate answers against a target and prints the
// comparison as JSON.
type RewardCmd struct {
	Question  string   `short:"q" required:"" help:"The question both answers address."`
	Target    string   `short:"t" required:"" help:"The known-good target answer."`
	Candidate []string `short:"c" help:"Candidate answer (repeatable)."`
}

func (c *RewardCmd) Run(rc *runContext) error {
	_, llm, err := rc.load()
	if err != nil {
		return err
	}
	service := reward.NewService(llm)
	comparison, err := service.CompareAnswer(rc.ctx, c.Question, c.Candidate, c.Target)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(comparison, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
