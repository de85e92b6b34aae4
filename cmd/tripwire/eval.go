package main

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/urfave/cli/v2"
)

var evalFlags = []cli.Flag{
	&cli.StringFlag{Name: "direction", Usage: "request, response or both"},
	&cli.StringFlag{Name: "dst", Usage: "destination address and port, e.g. 93.184.216.34:443"},
	&cli.StringFlag{Name: "hostname", Usage: "host name asked of the proxy"},
	&cli.StringFlag{Name: "sni", Usage: "TLS server name"},
	&cli.BoolFlag{Name: "sni-partial", Usage: "the server name is incomplete"},
	&cli.StringFlag{Name: "method", Usage: "HTTP request method"},
	&cli.StringFlag{Name: "url", Usage: "HTTP request URL"},
	&cli.StringSliceFlag{Name: "header", Usage: "HTTP request header as 'Name: value'"},
	&cli.StringFlag{Name: "answer", Usage: "answer to prompts: yes or no, unanswered when unset"},
	&cli.BoolFlag{Name: "diagnostics", Aliases: []string{"d"}, Usage: "print the flow diagnostic report"},
}

// eval feeds the facts given as flags to one flow, in the order a proxy
// would learn them.
func eval(c *cli.Context) error {
	e, _, _, err := setup(c)
	if err != nil {
		return err
	}
	f := e.NewFlow()

	if c.IsSet("direction") {
		var d filter.Direction
		switch c.String("direction") {
		case "request":
			d = filter.Request
		case "response":
			d = filter.Response
		case "both":
			d = filter.Both
		default:
			return fmt.Errorf("unknown direction %q", c.String("direction"))
		}
		f.SetDirection(d)
	}
	if c.IsSet("dst") {
		dst, err := netip.ParseAddrPort(c.String("dst"))
		if err != nil {
			return fmt.Errorf("parsing destination: %w", err)
		}
		f.SetDestination(dst)
	}
	if c.IsSet("hostname") {
		f.SetHostname(c.String("hostname"))
	}
	if c.IsSet("sni") {
		f.SetServerName(filter.TLSName{Name: c.String("sni"), Partial: c.Bool("sni-partial")})
	}
	if c.IsSet("method") || c.IsSet("url") {
		r, err := request(c.String("method"), c.String("url"), c.StringSlice("header"))
		if err != nil {
			return err
		}
		f.SetRequest(r)
	}
	if c.IsSet("answer") {
		var answer boolean.Maybe
		switch c.String("answer") {
		case "yes":
			answer = boolean.True
		case "no":
			answer = boolean.False
		default:
			return fmt.Errorf("unknown answer %q", c.String("answer"))
		}
		f.Confirm(func(string) boolean.Maybe { return answer })
	}

	fmt.Fprintln(c.App.Writer, f.Result())
	if c.Bool("diagnostics") {
		fmt.Fprintln(c.App.Writer, f.Diagnostics())
	}
	return nil
}

func request(method, url string, headers []string) (*http.Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	if url == "" {
		url = "/"
	}
	r, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("header %q: want 'Name: value'", h)
		}
		r.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return r, nil
}
