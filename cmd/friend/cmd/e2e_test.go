package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceFriend/internal/config"
)

const bringUpScript = `# bring up the chain
reset 1 0
reset 0 0
runtest 5
scan ir 4 0x1 capture end IDLE
scan dr 32 0xffffffff capture
flush
`

type e2eCase struct {
	name        string
	args        []string
	wantErr     bool
	wantContain []string
}

// runE2E executes each case against rootCmd and checks stdout.
func runE2E(t *testing.T, tests []e2eCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("APPDATA", "")

			// Capture stdout
			old := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			// Read in background to prevent pipe buffer from blocking on Windows
			var buf bytes.Buffer
			done := make(chan struct{})
			go func() {
				buf.ReadFrom(r)
				close(done)
			}()

			// Reset flags to prevent accumulation between tests
			simIDCodes = nil
			adapterType = "simulator"
			overflow = "flush"
			showStats = false
			maxDevices = 8

			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()

			// Restore stdout and wait for reader
			w.Close()
			os.Stdout = old
			<-done

			output := buf.String()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}

			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

// TestRunE2E tests the run command end-to-end against the simulator
func TestRunE2E(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "bringup.jtag")
	if err := os.WriteFile(good, []byte(bringUpScript), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	bad := filepath.Join(dir, "bad.jtag")
	if err := os.WriteFile(bad, []byte("runtest 5 end DRSELECT\n"), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	runE2E(t, []e2eCase{
		{
			name: "captures",
			args: []string{"run", good, "--adapter", "simulator"},
			wantContain: []string{
				"line 5: ir[4] = 0x01",
				"line 6: dr[32] = 0x4BA00477",
			},
		},
		{
			name: "stats",
			args: []string{"run", good, "--adapter", "simulator", "--stats"},
			wantContain: []string{
				"Transport statistics:",
				"bitbang_flushes_total",
				"bitbang_samples_total",
			},
		},
		{
			name: "custom chain",
			args: []string{"run", good, "--adapter", "simulator", "--sim-ids", "0x06413041"},
			wantContain: []string{
				"dr[32] = 0x06413041",
			},
		},
		{
			name:    "unstable end state",
			args:    []string{"run", bad, "--adapter", "simulator"},
			wantErr: true,
		},
		{
			name:    "missing script",
			args:    []string{"run", filepath.Join(dir, "nope.jtag"), "--adapter", "simulator"},
			wantErr: true,
		},
		{
			name:    "bad overflow policy",
			args:    []string{"run", good, "--adapter", "simulator", "--overflow", "spill"},
			wantErr: true,
		},
	})
}

// TestIDCodeE2E tests the idcode command end-to-end
func TestIDCodeE2E(t *testing.T) {
	runE2E(t, []e2eCase{
		{
			name: "default chain",
			args: []string{"idcode", "--adapter", "simulator"},
			wantContain: []string{
				"Found 1 device(s)",
				"0x4BA00477",
			},
		},
		{
			name: "bypass in the middle",
			args: []string{"idcode", "--adapter", "simulator", "--sim-ids", "0x4BA00477,0,0x06413041"},
			wantContain: []string{
				"Found 3 device(s)",
				"[0] 0x4BA00477",
				"[1] bypass",
				"[2] 0x06413041",
			},
		},
		{
			name:    "bad max",
			args:    []string{"idcode", "--adapter", "simulator", "--max", "0"},
			wantErr: true,
		},
		{
			name:    "bad IDCODE",
			args:    []string{"idcode", "--adapter", "simulator", "--sim-ids", "xyz"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"idcode", "--adapter", "jlink"},
			wantErr: true,
		},
	})
}

// TestLatencyE2E tests argument checking of the latency command
func TestLatencyE2E(t *testing.T) {
	runE2E(t, []e2eCase{
		{
			name:        "valid",
			args:        []string{"latency", "16"},
			wantContain: []string{"Latency timer set to 16 ms"},
		},
		{
			name:    "no argument",
			args:    []string{"latency"},
			wantErr: true,
		},
		{
			name:    "two arguments",
			args:    []string{"latency", "4", "8"},
			wantErr: true,
		},
		{
			name:    "out of range",
			args:    []string{"latency", "256"},
			wantErr: true,
		},
	})
}

func TestLatencyPersists(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", "")

	rootCmd.SetArgs([]string{"latency", "7"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("latency returned error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if cfg.Latency == nil || *cfg.Latency != 7 {
		t.Fatalf("stored latency = %v, want 7", cfg.Latency)
	}

	stored, err := cfg.Session()
	if err != nil {
		t.Fatalf("Session returned error: %v", err)
	}
	if stored.Latency != 7 {
		t.Fatalf("session latency = %d, want 7", stored.Latency)
	}
}
