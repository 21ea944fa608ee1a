// seed_runs.go seeds historical runs into a Storyloop instance from a YAML file
// so the learning and governance stages have history to work with.
//
// Usage:
//
//	go run scripts/seed_runs.go -file runs.yaml -api http://localhost:8700 -user system
//
// File format:
//
//	stories:
//	  - id: story-42
//	    runs:
//	      - recommendation_id: stabilize-core-loop
//	        objective: stabilize
//	        horizon_days: 7
//	        outcome: scale
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Stories []struct {
		ID   string    `yaml:"id"`
		Runs []seedRun `yaml:"runs"`
	} `yaml:"stories"`
}

type seedRun struct {
	RecommendationID string             `yaml:"recommendation_id" json:"recommendation_id,omitempty"`
	Objective        string             `yaml:"objective" json:"sprint_objective"`
	HorizonDays      int                `yaml:"horizon_days" json:"horizon_days"`
	Notes            string             `yaml:"notes" json:"notes,omitempty"`
	Baseline         map[string]float64 `yaml:"baseline" json:"baseline_metrics,omitempty"`
	Outcome          string             `yaml:"outcome" json:"-"`
	OutcomeMetrics   map[string]float64 `yaml:"outcome_metrics" json:"-"`
}

func main() {
	filePath := flag.String("file", "runs.yaml", "path to seed YAML file")
	apiURL := flag.String("api", "http://localhost:8700", "Storyloop API base URL")
	userID := flag.String("user", "system", "X-User-ID header value")
	dryRun := flag.Bool("dry-run", false, "print runs without posting")
	flag.Parse()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}

	if *dryRun {
		for _, story := range seed.Stories {
			for i, r := range story.Runs {
				outcome := "open"
				if r.Outcome != "" {
					outcome = r.Outcome
				}
				fmt.Printf("[%s #%d] %s (objective=%s, outcome=%s)\n", story.ID, i+1, r.RecommendationID, r.Objective, outcome)
			}
		}
		return
	}

	client := &http.Client{}
	created, closed, skipped := 0, 0, 0
	for _, story := range seed.Stories {
		for _, r := range story.Runs {
			var run struct {
				ID string `json:"id"`
			}
			path := fmt.Sprintf("/api/v1/stories/%s/runs", url.PathEscape(story.ID))
			status, err := send(client, "POST", *apiURL+path, *userID, r, &run)
			if err != nil || status != http.StatusCreated {
				log.Printf("skip %s/%s: status %d %v", story.ID, r.RecommendationID, status, err)
				skipped++
				continue
			}
			created++

			if r.Outcome == "" {
				continue
			}
			outcome := map[string]interface{}{
				"outcome_decision": r.Outcome,
				"outcome_metrics":  r.OutcomeMetrics,
			}
			status, err = send(client, "PATCH", *apiURL+"/api/v1/runs/"+run.ID+"/outcome", *userID, outcome, nil)
			if err != nil || status != http.StatusOK {
				log.Printf("outcome %s: status %d %v", run.ID, status, err)
				continue
			}
			closed++
		}
	}

	log.Printf("done: %d created, %d closed, %d skipped", created, closed, skipped)
}

func send(client *http.Client, method, target, userID string, body, out interface{}) (int, error) {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(method, target, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
