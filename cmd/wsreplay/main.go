package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/monitor"
	"github.com/psidex/wsmonitor/internal/source"
)

// wsreplay feeds a recorded stream of monitor events, one JSON object per line,
// through the graph engine and writes the resulting graph to a file.
func main() {
	input := flag.String("i", "", "JSON-lines file of monitor events")
	output := flag.String("o", "wsmonitor", "output filename without extension")
	format := flag.String("f", "html", "output format, html or json")
	root := flag.String("root", "S-replay", "root server node id")
	gap := flag.Duration("gap", 0, "pause between events")
	settle := flag.Duration("settle", 5*time.Second, "longest wait for drains and fades to finish")
	verbose := flag.Bool("v", false, "log every graph operation")
	flag.Parse()

	if *input == "" {
		log.Fatal("-i is required")
	}
	if *format != "html" && *format != "json" {
		log.Fatalf("unknown output format: %s", *format)
	}

	logger := lib.QuietLogger()
	if *verbose {
		logger = lib.NiceLogger(os.Stderr, slog.LevelDebug)
	}

	network := chart.NewNetwork(nil)
	ctl := monitor.New(logger, network, monitor.DefaultOptions())
	defer ctl.Teardown()
	if err := ctl.Init(*root); err != nil {
		log.Fatal(err)
	}
	applier := source.NewApplier(logger, ctl, nil)

	f, err := os.Open(*input)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := source.DecodeEvent([]byte(line))
		if err != nil {
			log.Printf("Skipping line %d: %s", count+1, err)
			continue
		}
		applier.Apply("replay", ev)
		count++
		if *gap > 0 {
			time.Sleep(*gap)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}

	deadline := time.Now().Add(*settle)
	for time.Now().Before(deadline) {
		if !ctl.Draining() && len(ctl.Pending()) == 0 && len(ctl.Fading()) == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	out, err := os.Create(*output + "." + *format)
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()

	switch *format {
	case "html":
		err = network.Render(out, "wsmonitor replay: "+*input)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(network.Snapshot())
	}
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Replayed %d events into %d nodes, wrote %s", count, len(ctl.Known()), out.Name())
}
