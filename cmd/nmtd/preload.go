package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// buildPreloadCmd wires a remote-warmup subcommand distinct from serve's
// in-process PRELOAD_MODELS startup path: this one calls a running nmtd's
// HTTP API to force a model into its cache, per
// original_source/tools/preload_models.py, which hits a deployed
// instance's /translate endpoint with throwaway text for the same effect.
func buildPreloadCmd() *cobra.Command {
	var (
		baseURL string
		pairs   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Warm a running gateway's pipeline cache for a set of language pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := parsePreloadPairs(pairs)
			if len(targets) == 0 {
				return fmt.Errorf("no pairs given; use --pairs \"en->de;de->en\"")
			}
			client := &http.Client{Timeout: timeout}
			for _, p := range targets {
				if err := remoteWarm(client, baseURL, p.Src, p.Tgt); err != nil {
					fmt.Printf("warm %s->%s: %v\n", p.Src, p.Tgt, err)
					continue
				}
				fmt.Printf("warmed %s->%s\n", p.Src, p.Tgt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8000", "base URL of the running nmtd instance")
	cmd.Flags().StringVar(&pairs, "pairs", "", `language pairs to warm, e.g. "en->de;de->en"`)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	return cmd
}

func remoteWarm(client *http.Client, baseURL, src, tgt string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"text":        []string{"preload"},
		"source_lang": src,
		"target_lang": tgt,
	})
	resp, err := client.Post(baseURL+"/translate", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
