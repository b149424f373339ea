package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrVersionTooOld indicates the run service is older than the minimum
// this client supports.
var ErrVersionTooOld = errors.New("agent service version too old")

// CheckVersion fetches the service health report and verifies the
// reported version against min (a semver string like "v1.2.0").
// Services that don't report a version pass the check; the gate exists
// for deployments that do.
func CheckVersion(ctx context.Context, c Client, min string) (*Health, error) {
	h, err := c.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	if !h.OK {
		return h, &ErrUnavailable{Err: fmt.Errorf("service reports not ok")}
	}

	if min == "" || h.Version == "" {
		return h, nil
	}

	got := canonical(h.Version)
	want := canonical(min)
	if !semver.IsValid(got) || !semver.IsValid(want) {
		// Unparseable versions are not grounds to refuse service.
		return h, nil
	}
	if semver.Compare(got, want) < 0 {
		return h, fmt.Errorf("%w: have %s, need >= %s", ErrVersionTooOld, h.Version, min)
	}
	return h, nil
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
