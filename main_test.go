package main

import (
	"os"
	"reflect"
	"testing"

	"newshub/config"
)

func TestWorkerOptions(t *testing.T) {
	cfg := config.Default()

	opts, err := workerOptions(cfg, "custom.yaml")
	if err != nil {
		t.Fatal(err)
	}
	self, _ := os.Executable()
	if opts.Command != self {
		t.Fatalf("expected built-in worker %s, got %s", self, opts.Command)
	}
	if !reflect.DeepEqual(opts.Args, []string{"worker", "--config", "custom.yaml"}) {
		t.Fatalf("unexpected args %v", opts.Args)
	}

	cfg.Summarizer.Command = "python3 summarizer.py --quiet"
	opts, err = workerOptions(cfg, "config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Command != "python3" || !reflect.DeepEqual(opts.Args, []string{"summarizer.py", "--quiet"}) {
		t.Fatalf("command not split: %s %v", opts.Command, opts.Args)
	}

	cfg.Summarizer.Command = "/opt/worker"
	cfg.Summarizer.Args = []string{"--model", "small"}
	opts, _ = workerOptions(cfg, "config.yaml")
	if opts.Command != "/opt/worker" || len(opts.Args) != 2 {
		t.Fatalf("explicit args should be kept: %s %v", opts.Command, opts.Args)
	}
}

func TestDefaultFeeds(t *testing.T) {
	feeds := defaultFeeds(config.Default().Feed.Sources)
	if len(feeds) != 3 {
		t.Fatalf("expected 3 default feeds, got %d", len(feeds))
	}
	for _, f := range feeds {
		if !f.Enabled || f.URL == "" {
			t.Fatalf("unexpected feed %+v", f)
		}
	}
}
