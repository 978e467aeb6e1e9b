// Command clinic is the offline-first CLI client for the clinic server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/dal"
	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/netwatch"
	"github.com/avarghese/clinicsync/internal/queue"
	"github.com/avarghese/clinicsync/internal/remote"
	"github.com/avarghese/clinicsync/internal/sequence"
	"github.com/avarghese/clinicsync/internal/store/filestore"
	"github.com/avarghese/clinicsync/internal/syncer"
)

func dataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "clinicsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "clinicsync")
}

// app is the wired client core shared by all subcommands.
type app struct {
	dal    *dal.DAL
	queue  *queue.Queue
	engine *syncer.Engine
	net    *netwatch.Poller
	log    *zap.Logger
}

func newApp(server, dir string) (*app, error) {
	kv, err := filestore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	log, _ := zap.NewDevelopment()

	rc := remote.NewHTTP(server, dal.SessionToken(kv))
	net := netwatch.NewPoller(netwatch.HTTPProbe(server), 0, log)
	q := queue.New(kv)
	seq := sequence.New(kv, log)
	d := dal.New(kv, q, rc, net, seq, log)
	eng := syncer.New(kv, q, rc, net, 0, log)

	return &app{dal: d, queue: q, engine: eng, net: net, log: log}, nil
}

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `clinic CLI
Usage:
  clinic [-server URL] [-data-dir DIR] <cmd> [args]

Commands:
  version
  login          -u <username> -p <password>        (saves session)
  logout
  whoami
  book           -name N -mobile M -date D [-type new|returning] [-mr MRN] [-ref R]
  appointments
  patients
  patient        -id <id>
  search         -q <text>
  patient-add    -file <json|->
  patient-update -id <id> -file <json|->
  sync
  status
  watch
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over the shared offline core.
func main() {
	server := flag.String("server", "http://localhost:8000/api", "server base URL")
	dir := flag.String("data-dir", dataDir(), "local store directory")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("clinic %s (%s)\n", version, buildDate)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(*server, *dir)
	if err != nil {
		fail(err)
	}
	defer func() { _ = a.log.Sync() }()

	switch cmd {

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		sess, err := a.dal.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		fmt.Printf("logged in as %s (%s)\n", sess.User.Username, sess.User.Role)

	case "logout":
		if err := a.dal.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		sess, err := a.dal.Session(ctx)
		if errors.Is(err, errs.ErrNotFound) {
			fmt.Println("not logged in")
			return
		}
		if err != nil {
			fail(err)
		}
		printJSON(sess.User)

	case "book":
		fs := flag.NewFlagSet("book", flag.ExitOnError)
		name := fs.String("name", "", "patient name")
		mobile := fs.String("mobile", "", "mobile number")
		date := fs.String("date", "", "appointment date (YYYY-MM-DD)")
		kind := fs.String("type", model.BookingNew, "booking type (new|returning)")
		mr := fs.String("mr", "", "medical record number (returning patients)")
		ref := fs.String("ref", "Walk-in", "referral source")
		_ = fs.Parse(flag.Args()[1:])

		b := model.Booking{
			BookingType:     *kind,
			MRNumber:        *mr,
			PatientName:     *name,
			Mobile:          *mobile,
			Reference:       *ref,
			AppointmentDate: *date,
		}
		saved, outcome, err := a.dal.CreateBooking(ctx, b)
		if err != nil {
			fail(err)
		}
		fmt.Printf("booking %s token %s (%s)\n", saved.ID, saved.TokenNumber, outcome)

	case "appointments":
		list, err := a.dal.FetchAppointments(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "patients":
		list, err := a.dal.FetchPatients(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "patient":
		fs := flag.NewFlagSet("patient", flag.ExitOnError)
		id := fs.String("id", "", "record id")
		_ = fs.Parse(flag.Args()[1:])
		list, err := a.dal.FetchPatients(ctx)
		if err != nil {
			fail(err)
		}
		for _, p := range list {
			if p.ID == *id {
				printJSON(p)
				return
			}
		}
		fail(fmt.Errorf("patient %s: %w", *id, errs.ErrNotFound))

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		q := fs.String("q", "", "query")
		_ = fs.Parse(flag.Args()[1:])
		res, err := a.dal.SearchPatients(ctx, *q)
		if err != nil {
			fail(err)
		}
		printJSON(res)

	case "patient-add":
		fs := flag.NewFlagSet("patient-add", flag.ExitOnError)
		file := fs.String("file", "-", "record JSON (path or - for stdin)")
		_ = fs.Parse(flag.Args()[1:])
		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		var p model.PatientRecord
		if err := json.Unmarshal(raw, &p); err != nil {
			fail(fmt.Errorf("parse record: %w", err))
		}
		saved, outcome, err := a.dal.CreatePatientRecord(ctx, p)
		if err != nil {
			fail(err)
		}
		fmt.Printf("patient %s mrn %q (%s)\n", saved.ID, saved.MRNumber, outcome)

	case "patient-update":
		fs := flag.NewFlagSet("patient-update", flag.ExitOnError)
		id := fs.String("id", "", "record id")
		file := fs.String("file", "-", "patch JSON (path or - for stdin)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		var patch model.PatientPatch
		if err := json.Unmarshal(raw, &patch); err != nil {
			fail(fmt.Errorf("parse patch: %w", err))
		}
		saved, outcome, err := a.dal.UpdatePatientRecord(ctx, *id, patch)
		if err != nil {
			fail(err)
		}
		fmt.Printf("patient %s updated (%s)\n", saved.ID, outcome)

	case "sync":
		res := a.engine.Drain(ctx)
		if res.Skipped {
			fmt.Printf("skipped: %s\n", res.Reason)
			return
		}
		fmt.Printf("synced %d/%d\n", res.Attempted-res.Failed, res.Attempted)

	case "status":
		n, err := a.queue.Len(ctx)
		if err != nil {
			fail(err)
		}
		online := a.net.Online()
		fmt.Printf("online: %v, pending: %d\n", online, n)

	case "watch":
		// long-running mode: poll connectivity and drain on every online edge
		runCtx, stop := context.WithCancel(context.Background())
		defer stop()
		go a.net.Run(runCtx)
		a.engine.Kick()
		fmt.Println("watching for connectivity, Ctrl-C to stop")
		a.engine.Run(runCtx)

	default:
		usage()
	}
}
