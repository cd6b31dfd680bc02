// prospect-batch submits a batch of explorations to a running prospect server
// and prints the outcomes. Usage: go run ./cmd/prospect-batch -type hypothesis -n 3
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "prospect server base URL")
	taskType := flag.String("type", "hypothesis", "exploration type to submit")
	count := flag.Int("n", 3, "number of explorations in the batch")
	input := flag.String("input", `{"topic": "demo"}`, "JSON input for each exploration")
	timeoutS := flag.Int("timeout", 60, "batch wait timeout in seconds")
	flag.Parse()

	specs := make([]map[string]any, 0, *count)
	for i := 0; i < *count; i++ {
		specs = append(specs, map[string]any{
			"type":  *taskType,
			"input": json.RawMessage(*input),
		})
	}

	body, err := json.Marshal(map[string]any{
		"explorations": specs,
		"timeout_s":    *timeoutS,
	})
	if err != nil {
		log.Fatalf("encode request: %v", err)
	}

	client := &http.Client{Timeout: time.Duration(*timeoutS+10) * time.Second}
	resp, err := client.Post(*serverURL+"/v1/explorations/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("submit batch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]string
		json.NewDecoder(resp.Body).Decode(&apiErr)
		log.Fatalf("server returned %d: %s", resp.StatusCode, apiErr["error"])
	}

	var result struct {
		Outcomes  []json.RawMessage `json:"outcomes"`
		Requested int               `json:"requested"`
		Returned  int               `json:"returned"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("decode response: %v", err)
	}

	fmt.Printf("batch: %d requested, %d returned\n", result.Requested, result.Returned)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, o := range result.Outcomes {
		var pretty any
		if err := json.Unmarshal(o, &pretty); err != nil {
			continue
		}
		enc.Encode(pretty)
	}
}
