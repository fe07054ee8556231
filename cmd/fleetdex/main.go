// Command fleetdex is the admin CLI over the agents index: enroll,
// look up, search and delete agents, and manage group membership.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"fleetdex/internal/config"
	"fleetdex/internal/events"
	"fleetdex/internal/index"
	"fleetdex/internal/index/agents"
	"fleetdex/internal/logging"
	"fleetdex/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexNames := append([]string{agents.IndexName}, cfg.Agents.SecondaryIndexes...)
	st, err := store.New(ctx, cfg.Store, indexNames...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close(context.Background())

	var pub events.Publisher
	if cfg.Events.Enabled {
		pub, err = events.NewNATSPublisher(ctx, cfg.Events.NATS)
		if err != nil {
			log.Fatalf("Failed to connect event publisher: %v", err)
		}
	}

	idx := agents.New(st, cfg.Agents, events.NewEmitter(pub, nil), nil)

	if err := run(ctx, idx, flag.Args()); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, idx *agents.Index, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "enroll":
		return runEnroll(ctx, idx, rest)
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: fleetdex get <id>")
		}
		agent, err := idx.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(agent)
	case "delete":
		if len(rest) == 0 {
			return fmt.Errorf("usage: fleetdex delete <id>...")
		}
		deleted, err := idx.Delete(ctx, rest)
		if err != nil {
			return err
		}
		return printJSON(deleted)
	case "search":
		return runSearch(ctx, idx, rest)
	case "group":
		return runGroup(ctx, idx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runEnroll(ctx context.Context, idx *agents.Index, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	id := fs.String("id", "", "Agent UUID (generated when empty)")
	key := fs.String("key", "", "Raw enrollment key")
	name := fs.String("name", "", "Agent name")
	groups := fs.String("groups", "", "Comma-separated groups appended after default")
	ips := fs.String("ips", "", "Comma-separated host IP addresses")
	osName := fs.String("os", "", "Host operating system")
	fs.Parse(args)

	req := agents.CreateRequest{
		ID:   *id,
		Key:  *key,
		Name: *name,
		OS:   *osName,
	}
	if *groups != "" {
		req.Groups = strings.Split(*groups, ",")
	}
	if *ips != "" {
		req.IPs = strings.Split(*ips, ",")
	}

	agent, err := idx.Create(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(agent)
}

func runSearch(ctx context.Context, idx *agents.Index, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	group := fs.String("group", "", "Filter by group membership")
	sel := fs.String("select", "", "Comma-separated fields to return")
	text := fs.String("text", "", "Free-text search term")
	offset := fs.Int("offset", 0, "Results to skip")
	limit := fs.Int("limit", 0, "Maximum results")
	sortBy := fs.String("sort", "", "Sort field, prefix with - for descending")
	fs.Parse(args)

	filter := index.All()
	if *group != "" {
		filter = index.ByToken(agents.FieldGroups, *group)
	}

	opts := index.SearchOptions{
		Offset: *offset,
		Limit:  *limit,
		Text:   *text,
	}
	if *sel != "" {
		opts.Select = strings.Split(*sel, ",")
	}
	if *sortBy != "" {
		field, direction := *sortBy, store.Asc
		if strings.HasPrefix(field, "-") {
			field, direction = field[1:], store.Desc
		}
		opts.Sort = []store.Sort{{Field: field, Direction: direction}}
	}

	found, err := idx.Search(ctx, filter, opts)
	if err != nil {
		return err
	}
	return printJSON(found)
}

func runGroup(ctx context.Context, idx *agents.Index, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: fleetdex group <add|override|remove|delete|agents> <group> [id...]")
	}
	sub, group, ids := args[0], args[1], args[2:]

	switch sub {
	case "add":
		return idx.AddToGroup(ctx, group, ids, false)
	case "override":
		return idx.AddToGroup(ctx, group, ids, true)
	case "remove":
		return idx.RemoveFromGroup(ctx, group, ids)
	case "delete":
		return idx.DeleteGroup(ctx, group)
	case "agents":
		members, err := idx.GroupAgents(ctx, group)
		if err != nil {
			return err
		}
		return printJSON(members)
	default:
		return fmt.Errorf("unknown group subcommand %q", sub)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: fleetdex [-config file] <command> [args]

Commands:
  enroll -name NAME [-id UUID] [-key KEY] [-groups g1,g2] [-ips a,b] [-os OS]
  get <id>
  delete <id>...
  search [-group G] [-select f1,f2] [-text TERM] [-offset N] [-limit N] [-sort [-]field]
  group add|override|remove <group> <id>...
  group delete <group>
  group agents <group>
`)
	flag.PrintDefaults()
}
