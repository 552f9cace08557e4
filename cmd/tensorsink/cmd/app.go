package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/corestream/tensorsink/pkg/elements"
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/serialize"
	_ "github.com/corestream/tensorsink/pkg/serialize/cbor"
	_ "github.com/corestream/tensorsink/pkg/serialize/msgpack"
	"github.com/corestream/tensorsink/pkg/sink"

	"contrib.go.opencensus.io/exporter/jaeger"
	"github.com/alecthomas/kingpin"
	"github.com/davecgh/go-spew/spew"
	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opencensus.io/trace"
)

var logger kitlog.Logger

var (
	app = kingpin.New("tensorsink", "Stream tensor buffers into a property-gated sink").Version(versionStanza())

	// Global flags
	debug               = app.Flag("debug", "Enable debug logging").Default("false").Bool()
	metricsAddress      = app.Flag("metrics-address", "Address to bind HTTP metrics listener").Default("127.0.0.1").String()
	metricsPort         = app.Flag("metrics-port", "Port to bind HTTP metrics listener").Default("9525").Uint16()
	jaegerAgentEndpoint = app.Flag("jaeger-agent-endpoint", "Endpoint for Jaeger agent").Default("localhost:6831").String()

	launch           = app.Command("launch", "Run a test pipeline into the tensor sink")
	launchSourceOpts = new(elements.TestSourceOptions).Bind(launch, "source.")
	launchSinkOpts   = new(sink.Options).Bind(launch, "sink.")
	launchDecodeOnly = launch.Flag("decode-only", "Dump forwarded buffers instead of serializing them").Default("false").Bool()
	launchOutput     = launch.Flag("output", "File to append serialized buffers to").Default("/dev/stdout").String()
	launchFormat     = launch.Flag("format", "Serialization format for forwarded buffers").Default("msgpack").String()
)

// SilentError should be returned when the command wants to skip all logging of the error
// it has encountered. It wraps no error content as we should never inspect it.
var SilentError = errors.New("silent error")

type UsageError struct {
	error
}

func Run() (err error) {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	}
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	stdlog.SetOutput(kitlog.NewStdlibAdapter(logger))

	// Setup an error handler to log and print usage
	defer func() {
		var usageErr UsageError
		switch {
		// Do nothing if no error
		case err == nil:
			return
		// Suppress silent errors
		case errors.Is(err, SilentError):
			return
		// If we're a usage error, unwrap it and print out usage before returning
		case errors.As(err, &usageErr):
			context, _ := app.ParseContext(os.Args[1:])
			app.UsageForContext(context)
			fmt.Fprintf(os.Stderr, "error: %s\n", usageErr.Error())

			err = usageErr.error
			return
		// Otherwise we probably want to log our error
		default:
			logger.Log("event", "error", "error", err, "msg", "exiting with error")
		}
	}()

	// This is the root context for the application. Once terminated, everything we have
	// started should also finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stage our shutdown to first request termination, then cancel contexts if downstream
	// workers haven't responded.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	shutdown := make(chan struct{})

	go func() {
		<-sigc
		close(shutdown)
		select {
		case <-time.After(30 * time.Second):
		case <-sigc:
		}
		cancel()
	}()

	var g run.Group

	{
		logger := kitlog.With(logger, "component", "shutdown_handler")

		ctx, cancel := context.WithCancel(ctx)

		// If we're asked to shutdown, we use the rungroup to trigger interrupts for every
		// component
		g.Add(
			func() error {
				select {
				case <-shutdown:
					logger.Log("event", "requesting_shutdown", "msg", "received signal, requesting shutdown")
				case <-ctx.Done():
				}

				return nil
			},
			func(error) {
				cancel() // end the shutdown select
			},
		)
	}

	{
		logger := kitlog.With(logger, "component", "metrics")

		// Metrics and debug endpoints
		mux := http.NewServeMux()

		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		srv := &http.Server{Addr: fmt.Sprintf("%s:%d", *metricsAddress, *metricsPort)}

		g.Add(
			func() error {
				logger.Log("event", "listen", "address", *metricsAddress, "port", *metricsPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}

				return nil
			},
			func(error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			},
		)
	}

	{
		// Tracing with jaeger
		jexporter, err := jaeger.NewExporter(jaeger.Options{
			AgentEndpoint: *jaegerAgentEndpoint,
			Process: jaeger.Process{
				ServiceName: "tensorsink",
			},
		})

		if err != nil {
			return UsageError{err}
		}

		trace.RegisterExporter(jexporter)
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	}

	switch command {
	case launch.FullCommand():
		codec, ok := serialize.Lookup(*launchFormat)
		if !ok {
			return UsageError{fmt.Errorf("unsupported format: %s (have %v)", *launchFormat, serialize.Names())}
		}

		output, err := openOutput(*launchOutput)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		defer output.Close()

		element := sink.New("tensor_sink", logger, *launchSinkOpts)

		pipe := pipeline.New(logger, pipeline.Options{Name: "launch"})
		for _, el := range []pipeline.Element{
			elements.NewTestSource("src", logger, *launchSourceOpts),
			elements.NewCapsFilter("filter", elements.VideoCaps{Format: launchSourceOpts.Format}),
			elements.NewConvert("convert", logger),
			element,
		} {
			if err := pipe.Add(el); err != nil {
				return fmt.Errorf("failed to assemble pipeline: %w", err)
			}
		}

		// Every forwarded buffer is serialized to the output, or dumped for
		// inspection in decode-only mode. Negotiated caps are available once
		// the pipeline reaches PAUSED, which is before the first render.
		element.Connect(sink.SignalNewData, func(buf *pipeline.Buffer) {
			if *launchDecodeOnly {
				spew.Dump(buf)
				return
			}

			caps, linked := element.Caps()
			if !linked {
				return
			}

			data, err := codec.Marshal(caps, buf)
			if err != nil {
				logger.Log("event", "marshal_error", "error", err)
				return
			}

			if _, err := output.Write(append(data, '\n')); err != nil {
				logger.Log("event", "write_error", "error", err)
			}
		})

		{
			logger := kitlog.With(logger, "component", "bus_watcher")

			pipe.Bus().Watch(func(msg pipeline.Message) {
				logger.Log("event", "bus_message", "msg", msg.String())
			})
		}

		{
			ctx, cancel := context.WithCancel(ctx)

			g.Add(
				func() error {
					msg, err := pipe.Run(ctx)
					if err != nil {
						return err
					}

					if msg.Kind.Failed() {
						return fmt.Errorf("pipeline failed: %s", msg)
					}

					return nil
				},
				func(error) {
					cancel()
					pipe.Stop(context.Background())
				},
			)
		}

		return g.Run()
	}

	return UsageError{fmt.Errorf("unsupported command")}
}

func openOutput(path string) (*os.File, error) {
	switch path {
	case "/dev/stdout":
		return os.Stdout, nil
	case "/dev/stderr":
		return os.Stderr, nil
	}

	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Set by goreleaser
var (
	Version   = "dev"
	Commit    = "none"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

func versionStanza() string {
	return fmt.Sprintf(
		"tensorsink Version: %v\nGit SHA: %v\nGo Version: %v\nGo OS/Arch: %v/%v\nBuilt at: %v",
		Version, Commit, GoVersion, runtime.GOOS, runtime.GOARCH, Date,
	)
}
