// Command nsqeventrouter tails a topic/channel and dispatches each
// message to an executable in a handlers directory, named after the
// message's first whitespace-delimited token. Adapted from the
// teacher's nsq_event_router.go (itself derived from nsq_tail) onto the
// Consumer API in this module.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	nsqc "github.com/nsqio/go-nsqc"
)

type stringArray []string

func (a *stringArray) String() string     { return strings.Join(*a, ",") }
func (a *stringArray) Set(s string) error { *a = append(*a, s); return nil }

var (
	topic       = flag.String("topic", "", "nsq topic")
	channel     = flag.String("channel", "", "nsq channel")
	handlersDir = flag.String("handlers-dir", "", "directory with event handlers")
	maxInFlight = flag.Int("max-in-flight", 200, "max number of messages to allow in flight")

	nsqdTCPAddrs     stringArray
	lookupdHTTPAddrs stringArray
)

func init() {
	flag.Var(&nsqdTCPAddrs, "nsqd-tcp-address", "nsqd TCP address (may be given multiple times)")
	flag.Var(&lookupdHTTPAddrs, "lookupd-http-address", "lookupd HTTP address (may be given multiple times)")
}

func dispatch(handlersDir string, body []byte) {
	msgParts := strings.Split(string(body), " ")
	eventName := msgParts[0]
	handlerArguments := strings.Join(msgParts[1:], " ")

	handlerPath := filepath.Join(handlersDir, eventName)
	if _, err := os.Stat(handlerPath); os.IsNotExist(err) {
		log.Printf("ignoring event %s, no handler found", eventName)
		return
	}

	cmd := exec.Command(handlerPath, handlerArguments)
	cmd.Dir = handlersDir

	log.Printf("triggering event %s", eventName)
	out, err := cmd.Output()
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			log.Printf("[%s] %s", eventName, line)
		}
	}
	if err != nil {
		log.Printf("[%s] failed with error: %s", eventName, err)
	}
}

func main() {
	flag.Parse()

	if *channel == "" {
		rand.Seed(time.Now().UnixNano())
		*channel = fmt.Sprintf("event_router%06d#ephemeral", rand.Int()%999999)
	}
	if *topic == "" {
		log.Fatalf("--topic is required")
	}
	if *handlersDir == "" {
		log.Fatalf("--handlers-dir is required")
	}
	if len(nsqdTCPAddrs) == 0 && len(lookupdHTTPAddrs) == 0 {
		log.Fatalf("--nsqd-tcp-address or --lookupd-http-address required")
	}
	if len(nsqdTCPAddrs) > 0 && len(lookupdHTTPAddrs) > 0 {
		log.Fatalf("use --nsqd-tcp-address or --lookupd-http-address, not both")
	}

	cleaned := path.Clean(*handlersDir)
	absHandlersDir := cleaned
	if !strings.HasPrefix(cleaned, "/") {
		cwd, _ := os.Getwd()
		absHandlersDir = path.Join(cwd, cleaned)
	}
	log.Printf("using handlers-dir %s", absHandlersDir)

	cfg := nsqc.NewConfig()
	cfg.MaxInFlight = *maxInFlight

	consumer, err := nsqc.NewConsumer(*topic, *channel, cfg, nil)
	if err != nil {
		log.Fatalf("%s", err)
	}

	for _, addr := range nsqdTCPAddrs {
		if err := consumer.ConnectToNSQD(addr); err != nil {
			log.Fatalf("%s", err)
		}
	}
	if len(lookupdHTTPAddrs) > 0 {
		log.Printf("lookupd addrs %v", []string(lookupdHTTPAddrs))
		if err := consumer.ConnectToNSQLookupds(lookupdHTTPAddrs); err != nil {
			log.Fatalf("%s", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		<-sigChan
		consumer.Stop()
	}()

	for msg := range consumer.Messages() {
		dispatch(absHandlersDir, msg.Body)
		msg.Finish()
	}
}
