// fetch-loadgen is a tiny, dependency-free dispatch-command load generator
// for exercising a Fetcher node directly, bypassing the Controller's
// pacing so an operator can push a fetcher to its capacity_rps ceiling on
// demand.
//
// Usage example:
//
//	fetch-loadgen -addr=127.0.0.1:3000 -tokens=A,B,C -n=2000 -c=16
//
// Notes:
//   - Every request carries the full token list and sets trigger=true,
//     mirroring the Controller's always-trigger dispatch commands.
//   - Prints a one-line summary with duration and approximate throughput.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"obmirror/internal/fleet"
	"obmirror/internal/fleet/transport"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:3000", "fetcher TCP address")
		tokens  = flag.String("tokens", "", "comma-separated token ids to include in every command")
		n       = flag.Int("n", 2000, "total commands to send")
		conc    = flag.Int("c", 8, "number of concurrent senders")
		timeout = flag.Duration("timeout", 20*time.Second, "overall timeout for the run")
	)
	flag.Parse()

	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	var tokenList []string
	if *tokens != "" {
		tokenList = strings.Split(*tokens, ",")
	}

	deadline := time.Now().Add(*timeout)
	start := time.Now()
	var ok, failed int64

	worker := func(id, count int) {
		for i := 0; i < count; i++ {
			if time.Now().After(deadline) {
				return
			}
			cmd := fleet.Command{Tokens: tokenList, Trigger: true}
			if err := transport.Send(*addr, cmd, 1200*time.Millisecond, 2*time.Second); err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			atomic.AddInt64(&ok, 1)
		}
	}

	per := *n / *conc
	rem := *n - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, c int) {
			defer wg.Done()
			worker(id, c)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(ok) / elapsed.Seconds()
	fmt.Printf("fetch-loadgen: N=%d c=%d go=%d ok=%d failed=%d Duration=%s Throughput=%.0f cmd/s\n",
		*n, *conc, runtime.GOMAXPROCS(0), ok, failed, elapsed.Truncate(time.Millisecond), ops)
}
