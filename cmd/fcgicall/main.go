// Command fcgicall executes a FastCGI request against a TCP or unix
// socket server (such as php-fpm) and prints the response.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	fcgiclient "github.com/mazrean/fcgiclient"
	myjson "github.com/mazrean/fcgiclient/internal/pkg/json"
	mylog "github.com/mazrean/fcgiclient/internal/pkg/log"
	"github.com/mazrean/fcgiclient/log"
)

var (
	version  = "dev"
	revision = "none"
)

// CLI represents command line options and configuration file values
var CLI struct {
	Version     kong.VersionFlag  `kong:"short='v',help='Show version and exit.'"`
	Network     string            `kong:"default='tcp',enum='tcp,unix',help='Server network',env='FCGICALL_NETWORK'"`
	Address     string            `kong:"short='a',default='127.0.0.1:9000',help='Server address (host:port or socket path)',env='FCGICALL_ADDRESS'"`
	Script      string            `kong:"short='s',required,help='SCRIPT_FILENAME on the server',env='FCGICALL_SCRIPT'"`
	Method      string            `kong:"short='m',default='GET',help='REQUEST_METHOD'"`
	URI         string            `kong:"short='u',default='/',help='Request URI, query string included'"`
	Body        string            `kong:"short='b',optional,help='Request body; use - to read stdin'"`
	Param       map[string]string `kong:"short='p',optional,help='Extra FastCGI params'"`
	Requests    int               `kong:"short='n',default='1',help='Number of requests to send over one keep-alive connection'"`
	Concurrency int               `kong:"short='c',default='1',help='In-flight requests; above 1 requires a multiplexing server'"`
	JSON        bool              `kong:"help='Print the response as JSON'"`
	Timeout     time.Duration     `kong:"default='10s',help='Connect and request-id allocation timeout'"`
	LogLevel    string            `kong:"short='l',default='info',enum='debug,info,warn,error,silent',help='Log level',env='FCGICALL_LOG_LEVEL'"`
	Dev         DevFlag           `kong:"group='dev',embed,prefix='dev.'"`
}

// buildParams assembles the parameter set for one request the way a web
// server fronting the FastCGI app would.
func buildParams(body string) fcgiclient.Params {
	uri, query, _ := strings.Cut(CLI.URI, "?")

	params := fcgiclient.DefaultParams()
	params["REQUEST_METHOD"] = CLI.Method
	params["SCRIPT_FILENAME"] = CLI.Script
	params["SCRIPT_NAME"] = uri
	params["REQUEST_URI"] = CLI.URI
	params["DOCUMENT_URI"] = uri
	params["DOCUMENT_ROOT"] = path.Dir(CLI.Script)
	params["QUERY_STRING"] = query
	params["REMOTE_ADDR"] = "127.0.0.1"
	params["REMOTE_PORT"] = "0"
	params["SERVER_ADDR"] = "127.0.0.1"
	params["SERVER_PORT"] = "80"
	params["SERVER_NAME"] = "fcgicall"
	params["CONTENT_TYPE"] = ""
	params["CONTENT_LENGTH"] = strconv.Itoa(len(body))
	if CLI.Method == "POST" || CLI.Method == "PUT" {
		params["CONTENT_TYPE"] = "application/x-www-form-urlencoded"
	}

	for name, value := range CLI.Param {
		params[name] = value
	}

	return params
}

// jsonResponse is the --json output shape.
type jsonResponse struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

func printResponse(res *fcgiclient.Response) error {
	if CLI.JSON {
		return myjson.NewEncoder(os.Stdout).Encode(jsonResponse{
			Stdout: string(res.Stdout),
			Stderr: string(res.Stderr),
		})
	}

	if len(res.Stdout) > 0 {
		if _, err := os.Stdout.Write(res.Stdout); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
	}
	if len(res.Stderr) > 0 {
		if _, err := os.Stderr.Write(res.Stderr); err != nil {
			return fmt.Errorf("write stderr: %w", err)
		}
	}

	return nil
}

func run(logger log.Logger) error {
	body := CLI.Body
	if body == "-" {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read body from stdin: %w", err)
		}
		body = string(buf)
	}
	params := buildParams(body)

	conn, err := net.DialTimeout(CLI.Network, CLI.Address, CLI.Timeout)
	if err != nil {
		return fmt.Errorf("connect %s %s: %w", CLI.Network, CLI.Address, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Timeout)
	defer cancel()

	if CLI.Requests <= 1 {
		client := fcgiclient.New(conn, fcgiclient.WithLogger(logger))

		var res *fcgiclient.Response
		err := CLI.Dev.Observe("execute", func() error {
			var err error
			res, err = client.Execute(ctx, fcgiclient.NewRequest(params, strings.NewReader(body)))
			return err
		})
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		return printResponse(res)
	}

	// Load mode: issue all requests over one keep-alive connection and
	// report only failures and timing.
	client := fcgiclient.NewPersistent(conn, fcgiclient.WithLogger(logger))

	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(CLI.Concurrency)
	for i := 0; i < CLI.Requests; i++ {
		eg.Go(func() error {
			return CLI.Dev.Observe("execute", func() error {
				_, err := client.Execute(ctx, fcgiclient.NewRequest(params, strings.NewReader(body)))
				return err
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("execute requests: %w", err)
	}

	logger.Infof("%d requests in %s", CLI.Requests, time.Since(start))

	return nil
}

func main() {
	// Initialize default logger with info level
	logger := log.DefaultLogger

	parser := kong.Must(&CLI,
		kong.Name("fcgicall"),
		kong.Description("Execute a FastCGI request and print the response"),
		kong.Vars{"version": fmt.Sprintf("%s (%s)", version, revision)},
		kong.UsageOnError(),
	)
	if _, err := parser.Parse(os.Args[1:]); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	if err := CLI.Dev.StartProfiling(); err != nil {
		logger.Warnf("failed to start profiling: %v", err)
	}
	defer CLI.Dev.StopProfiling()

	// Set log level
	switch CLI.LogLevel {
	case "silent":
		logger = mylog.NewLogger(mylog.Silent)
	case "error":
		logger = mylog.NewLogger(mylog.Error)
	case "warn":
		logger = mylog.NewLogger(mylog.Warn)
	case "info":
	case "debug":
		logger = mylog.NewLogger(mylog.Debug)
	default:
		logger.Warnf("invalid log level: %s. ignore and use default info level instead", CLI.LogLevel)
	}

	logger.Debugf("configuration: %+v", CLI)

	if err := run(logger); err != nil {
		logger.Errorf("unexpected error: %v", err)
		os.Exit(1)
	}
}
