// Package admincli provides the operator-facing command tree for
// inspecting one storage node's local state: datasets it holds and
// jobs it has admitted. Adapted from the teacher's cli/commands
// package (show_hdlr.go's command-table shape, shell.go's flag
// conventions), scoped down from a cluster-wide API client to direct
// reads of this process's own store and result cache, since a
// cluster-wide admin surface would need the gateway/transport layer
// this spec treats as external (SPEC_FULL §1).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package admincli

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/loader"
	"github.com/steffenkarlsson/bdae-storage/store"
)

const (
	commandShow   = "show"
	subcmdDataset = "dataset"
	subcmdJobs    = "jobs"
	commandLoad   = "load"
)

// Inspector is the read-only surface admincli needs from the running
// node; *store.Store satisfies it directly.
type Inspector interface {
	GetMeta(did cmn.DIdentifier) (store.Metadata, error)
}

// JobLister reports in-flight/completed jobs this node has admitted.
// A concrete implementation wraps the job coordinator's result cache;
// kept as an interface here so this package never imports cache
// directly (the command tree only needs to print entries, not mutate
// them).
type JobLister interface {
	ListJobs() []JobSummary
}

// JobSummary is one line of `show jobs` output.
type JobSummary struct {
	DIdentifier cmn.DIdentifier
	FIdentifier cmn.FIdentifier
	Working     bool
	Gateway     string
}

// InspectorFactory, JobListerFactory, and LoaderFactory build the
// node-state readers/writers at action time rather than at
// command-tree construction time: the flags identifying which node's
// state to touch (e.g. --conf-dir) aren't parsed yet when the command
// tree is assembled.
type InspectorFactory func(c *cli.Context) (Inspector, error)
type JobListerFactory func(c *cli.Context) (JobLister, error)

// LoaderFactory builds the bulk-append target for `load`. It returns
// loader.Appender directly rather than a package-local interface,
// since an admin bulk-load is exactly the operation loader.LoadDir
// already knows how to drive.
type LoaderFactory func(c *cli.Context) (loader.Appender, error)

// Commands builds the operator command tree, matching the teacher's
// showCmds table shape.
func Commands(inspector InspectorFactory, jobs JobListerFactory, loaderFactory LoaderFactory) []cli.Command {
	return []cli.Command{
		{
			Name:  commandShow,
			Usage: "show local node state",
			Subcommands: []cli.Command{
				{
					Name:      subcmdDataset,
					Usage:     "show a dataset's metadata",
					ArgsUsage: "DIDENTIFIER",
					Action:    showDatasetHandler(inspector),
				},
				{
					Name:   subcmdJobs,
					Usage:  "show jobs admitted by this node",
					Action: showJobsHandler(jobs),
				},
			},
		},
		{
			Name:      commandLoad,
			Usage:     "bulk-load a local directory's files into a dataset as blocks",
			ArgsUsage: "DIDENTIFIER DIR",
			Action:    loadDirHandler(loaderFactory),
		},
	}
}

func showDatasetHandler(newInspector InspectorFactory) cli.ActionFunc {
	return func(c *cli.Context) error {
		raw := c.Args().First()
		if raw == "" {
			return cli.NewExitError("missing DIDENTIFIER argument", 1)
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid dataset id %q: %v", raw, err), 1)
		}
		inspector, err := newInspector(c)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		meta, err := inspector.GetMeta(cmn.DIdentifier(n))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		for k, v := range meta {
			fmt.Printf("%s: %v\n", k, v)
		}
		return nil
	}
}

func loadDirHandler(newLoader LoaderFactory) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 2 {
			return cli.NewExitError("usage: load DIDENTIFIER DIR", 1)
		}
		raw := c.Args().Get(0)
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid dataset id %q: %v", raw, err), 1)
		}
		dir := c.Args().Get(1)

		appender, err := newLoader(c)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		loaded, err := loader.LoadDir(appender, cmn.DIdentifier(n), dir, rawFileRecord)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Printf("loaded %d block(s) into dataset %d\n", loaded, n)
		return nil
	}
}

// rawFileRecord turns one file's bytes into a single-record block: the
// whole file, verbatim, as one opaque record (the engine never
// interprets record contents, SPEC_FULL §3).
func rawFileRecord(path string, data []byte) (store.Block, error) {
	return store.Block{string(data)}, nil
}

func showJobsHandler(newJobLister JobListerFactory) cli.ActionFunc {
	return func(c *cli.Context) error {
		jobs, err := newJobLister(c)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		summaries := jobs.ListJobs()
		if len(summaries) == 0 {
			fmt.Println("no jobs admitted")
			return nil
		}
		for _, j := range summaries {
			status := "done"
			if j.Working {
				status = "working"
			}
			fmt.Printf("did=%d fid=%d status=%s gateway=%s\n", j.DIdentifier, j.FIdentifier, status, j.Gateway)
		}
		return nil
	}
}
