package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/ghalamif/BrewFlow"
)

const defaultConfigPath = "./data/config.yaml"

var (
	title = color.New(color.FgHiYellow, color.Bold)
	good  = color.New(color.FgGreen)
	bad   = color.New(color.FgRed)
	dim   = color.New(color.Faint)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "parse":
		err = parseCommand(os.Args[2:], os.Stdin, os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("brew-dash %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "Path to dashboard configuration file")
	replayPath := fs.String("replay", "", "Play frames from a recording instead of connecting to the broker")
	interval := fs.Duration("interval", 500*time.Millisecond, "Delay between replayed frames")
	loop := fs.Bool("loop", false, "Restart the recording when it ends")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A replayed recording needs no broker, but the config still requires an endpoint.
	if *replayPath != "" && os.Getenv("BREWFLOW_MQTT_ENDPOINT") == "" {
		if err := os.Setenv("BREWFLOW_MQTT_ENDPOINT", "replay://"+*replayPath); err != nil {
			return err
		}
	}

	flow, err := brewflow.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *replayPath != "" {
		flow.StreamIN(brewflow.StreamInReplay(*replayPath, *interval, *loop))
	}

	cfg := flow.Config()
	title.Println("BrewFlow dashboard")
	fmt.Printf("  broker     %s\n", cfg.Broker.Endpoint)
	fmt.Printf("  topic      %s\n", cfg.Broker.Topic)
	fmt.Printf("  dashboard  http://localhost%s/api/session\n", cfg.Dashboard.Addr)
	fmt.Printf("  metrics    http://localhost%s/metrics\n", cfg.Metrics.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := brewflow.LoadConfig(*cfgPath)
	if err != nil {
		bad.Printf("config %s is invalid\n", *cfgPath)
		return err
	}
	good.Printf("config %s looks good\n", *cfgPath)
	dim.Printf("  broker %s topic %s outbox %d archive %v\n",
		cfg.Broker.Endpoint, cfg.Broker.Topic, cfg.Broker.Outbox.Capacity, cfg.Archive.Enabled())
	return nil
}

// parseCommand decodes one frame per input line and reports accepted samples and
// rejected frames. It fails when any frame was rejected.
func parseCommand(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	quiet := fs.BoolP("quiet", "q", false, "Only print rejected frames")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var accepted, rejected int
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := brewflow.ParseFrame(raw)
		if err != nil {
			rejected++
			bad.Fprintf(out, "%4d  %v\n", line, err)
			continue
		}
		accepted++
		if !*quiet {
			fmt.Fprintf(out, "%4d  %-12s w=%g p=%g duty=%g flow=%g temp=%g  %s\n",
				line, s.StateName, s.WeightGrams, s.PressureBars, s.DutyCyclePercent, s.FlowRateGPS, s.BrewTempC,
				dim.Sprint(s.Description))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d accepted, %d rejected\n", accepted, rejected)
	if rejected > 0 {
		return errors.New("some frames were rejected")
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				bad.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"brew_frames_received_total",
	"brew_frames_rejected_total",
	"brew_sessions_started_total",
	"brew_session_samples",
	"brew_connection_state",
	"brew_outbox_length",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scrape(resp.Body, statsTargets)
	if err != nil {
		return err
	}

	phase := brewflow.Phase(int(values["brew_connection_state"]))
	fmt.Printf("[%s] frames=%g rejected=%g sessions=%g samples=%g outbox=%g %s\n",
		time.Now().Format(time.RFC3339),
		values["brew_frames_received_total"],
		values["brew_frames_rejected_total"],
		values["brew_sessions_started_total"],
		values["brew_session_samples"],
		values["brew_outbox_length"],
		phaseColor(phase).Sprint(phase),
	)
	return nil
}

// scrape sums every sample of the named metrics in a text exposition. Labelled
// series such as the rejected-frame reasons are added together.
func scrape(r io.Reader, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, name := range names {
			if !strings.HasPrefix(line, name+" ") && !strings.HasPrefix(line, name+"{") {
				continue
			}
			idx := strings.LastIndexByte(line, ' ')
			v, err := strconv.ParseFloat(line[idx+1:], 64)
			if err == nil {
				out[name] += v
			}
		}
	}
	return out, scanner.Err()
}

func phaseColor(p brewflow.Phase) *color.Color {
	switch p {
	case brewflow.Connected:
		return good
	case brewflow.Disconnected:
		return bad
	default:
		return color.New(color.FgYellow)
	}
}

func printUsage() {
	title.Println("BrewFlow CLI")
	fmt.Printf(`
Usage:
  brew-dash <command> [flags]

Commands:
  run        Connect to the broker (or replay a recording) and serve the dashboard
  validate   Load and validate a config file without starting the dashboard
  parse      Decode telemetry frames from stdin and report rejected ones
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  brew-dash run --config ./data/config.yaml
  brew-dash run --replay ./internal/frame/testdata/brew_shot.txt --interval 200ms --loop
  brew-dash validate -c ./data/config.yaml
  brew-dash parse < ./internal/frame/testdata/brew_shot.txt
  brew-dash stats --url http://localhost:9100/metrics --interval 1s
`)
}
