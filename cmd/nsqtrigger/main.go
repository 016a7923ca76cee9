// Command nsqtrigger posts a single event to an nsqd topic over HTTP,
// adapted from the teacher's nsq_trigger.go (a wrapper around a curl
// POST to nsqd's /put endpoint) onto httpclient.PublishHTTP.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nsqio/go-nsqc/httpclient"
)

var (
	topic         = flag.String("topic", "events", "nsq topic")
	nsqdHTTPAddr  = flag.String("nsqd-http-address", "127.0.0.1:4151", "nsqd HTTP address")
)

func failWithUsage() {
	fmt.Println("e.g: nsqtrigger [--topic=events] [--nsqd-http-address=127.0.0.1:4151] <event_name> [<event_body>]")
	os.Exit(1)
}

func main() {
	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Println("at least the event name is required as a non-flag argument")
		failWithUsage()
	}

	eventBody := strings.Join(flag.Args(), " ")

	c := httpclient.New(*nsqdHTTPAddr)
	if err := c.PublishHTTP(*topic, []byte(eventBody)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", *nsqdHTTPAddr, err)
		os.Exit(1)
	}
	fmt.Printf("%s: ok\n", *nsqdHTTPAddr)
}
