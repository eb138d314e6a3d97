package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/sce/internal/store"
)

// openStore opens an existing run database. A missing file is reported
// instead of being created empty.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, f.fail(ExitCommandError, ErrCodeDatabase, "--db is required", nil, nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeNotFound, "database not found", err, nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeDatabase, "opening database", err, nil)
	}
	return st, nil
}

// selectRun reads the run with the given ID, or the latest run when id is
// empty.
func selectRun(ctx context.Context, f *OutputFormatter, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	if store.IsRunNotFound(err) {
		msg := "no runs recorded"
		if id != "" {
			msg = fmt.Sprintf("run not found: %s", id)
		}
		return store.Run{}, f.fail(ExitCommandError, ErrCodeNotFound, msg, nil, nil)
	}
	if err != nil {
		return store.Run{}, f.fail(ExitCommandError, ErrCodeDatabase, "reading run", err, nil)
	}
	return run, nil
}
