package mysql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/jmoiron/sqlx"
)

const (
	flavorMySQL   = "mysql"
	flavorMariaDB = "mariadb"
)

// MariaDB reports column defaults as SQL expressions (quoted strings,
// literal NULL) starting with this release.
var mariaDBQuotedDefaults = version.Must(version.NewVersion("10.2.7"))

var versionPrefix = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

type serverInfo struct {
	flavor  string
	version *version.Version
}

func detectServer(ctx context.Context, db *sqlx.DB) (serverInfo, error) {
	var raw string
	if err := db.GetContext(ctx, &raw, "SELECT VERSION()"); err != nil {
		return serverInfo{}, fmt.Errorf("detect server version: %w", err)
	}
	return parseServerVersion(raw)
}

// parseServerVersion reads strings like "8.0.36", "5.7.44-log" or
// "10.11.6-MariaDB-1:10.11.6+maria~ubu2204".
func parseServerVersion(raw string) (serverInfo, error) {
	info := serverInfo{flavor: flavorMySQL}
	raw = strings.TrimSpace(raw)
	if strings.Contains(strings.ToLower(raw), "mariadb") {
		info.flavor = flavorMariaDB
		// replication handshakes prefix the real version
		raw = strings.TrimPrefix(raw, "5.5.5-")
	}
	num := versionPrefix.FindString(raw)
	if num == "" {
		return info, fmt.Errorf("unrecognized server version %q", raw)
	}
	v, err := version.NewVersion(num)
	if err != nil {
		return info, fmt.Errorf("unrecognized server version %q: %w", raw, err)
	}
	info.version = v
	return info, nil
}

func (s serverInfo) quotesDefaults() bool {
	return s.flavor == flavorMariaDB && s.version != nil && s.version.GreaterThanOrEqual(mariaDBQuotedDefaults)
}
