// Command tail subscribes to one or more columns and prints newly
// arriving items to stdout as JSON lines. It exercises the full client
// stack: long-poll transport, per-column loops, backoff and lifecycle.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/markussandin1/Newsdeck-sub001/internal/client"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	"github.com/markussandin1/Newsdeck-sub001/internal/logging"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the update server")
	columns := flag.String("columns", "", "comma-separated column ids to subscribe to")
	filterExpr := flag.String("filter", "", "CEL filter expression forwarded with every poll")
	recency := flag.Duration("recency", time.Minute, "maximum item age for notification")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	logging.InitLogger(*logLevel, "text")

	if *columns == "" {
		fmt.Fprintln(os.Stderr, "at least one column is required (-columns a,b,c)")
		os.Exit(2)
	}

	var subs []client.Subscription
	for _, column := range strings.Split(*columns, ",") {
		column = strings.TrimSpace(column)
		if column != "" {
			subs = append(subs, client.Subscription{Column: column, Filter: *filterExpr})
		}
	}

	notify := func(columnID string, items []domain.Item) {
		for _, item := range items {
			line, err := json.Marshal(map[string]any{
				"column":     columnID,
				"id":         item.ID,
				"created_ms": item.CreatedMs,
				"payload":    item.Payload,
			})
			if err != nil {
				slog.Warn("Failed to encode item", "column", columnID, "id", item.ID, "error", err)
				continue
			}
			fmt.Println(string(line))
		}
	}
	status := func(columnID string, connected bool) {
		if connected {
			slog.Info("Connected", "column", columnID)
		} else {
			slog.Warn("Disconnected, retrying", "column", columnID)
		}
	}

	transport := client.NewHTTPTransport(*serverURL)
	mgr := client.NewManager(transport, clockwork.NewRealClock(), notify, status, domain.RecentWithin(*recency))
	mgr.SetSubscriptions(subs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	mgr.Close()
}
