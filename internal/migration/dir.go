package migration

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"ariga.io/atlas/sql/migrate"
)

// ErrNoChanges is returned when a migration without SQL would be written.
var ErrNoChanges = errors.New("migration has no statements")

var (
	upTemplate = template.Must(template.New("up").Parse(
		`{{ range .Changes }}{{ with .Comment }}-- {{ println . }}{{ end }}{{ printf "%s;\n" .Cmd }}{{ end }}`,
	))
	upName   = template.Must(template.New("up-name").Parse(`{{ .Version }}{{ with .Name }}_{{ . }}{{ end }}.up.sql`))
	downName = template.Must(template.New("down-name").Parse(`{{ .Version }}{{ with .Name }}_{{ . }}{{ end }}.down.sql`))
)

// WriteDir writes m as a versioned pair of up and down files into an atlas
// migration directory and refreshes the directory checksum file. It returns
// the names of the written files.
func WriteDir(path, name string, m *Migration, now time.Time) ([]string, error) {
	if m == nil || m.IsEmpty() {
		return nil, ErrNoChanges
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create migration dir: %w", err)
	}
	dir, err := migrate.NewLocalDir(path)
	if err != nil {
		return nil, fmt.Errorf("open migration dir: %w", err)
	}

	version := now.UTC().Format("20060102150405")
	up := &migrate.Plan{Version: version, Name: name}
	for i, stmt := range m.SQLStatements() {
		ch := &migrate.Change{Cmd: stmt}
		if i == 0 {
			ch.Comment = header(m)
		}
		up.Changes = append(up.Changes, ch)
	}
	down := &migrate.Plan{Version: version, Name: name}
	for _, stmt := range m.RollbackStatements() {
		down.Changes = append(down.Changes, &migrate.Change{Cmd: stmt})
	}

	var written []string
	for _, p := range []struct {
		plan *migrate.Plan
		name *template.Template
	}{{up, upName}, {down, downName}} {
		if len(p.plan.Changes) == 0 {
			continue
		}
		f, err := migrate.NewTemplateFormatter(p.name, upTemplate)
		if err != nil {
			return nil, err
		}
		files, err := f.Format(p.plan)
		if err != nil {
			return nil, fmt.Errorf("format migration: %w", err)
		}
		for _, file := range files {
			if err := dir.WriteFile(file.Name(), file.Bytes()); err != nil {
				return nil, fmt.Errorf("write %s: %w", file.Name(), err)
			}
			written = append(written, file.Name())
		}
	}

	sum, err := dir.Checksum()
	if err != nil {
		return nil, fmt.Errorf("checksum migration dir: %w", err)
	}
	if err := migrate.WriteSumFile(dir, sum); err != nil {
		return nil, fmt.Errorf("write %s: %w", migrate.HashFileName, err)
	}
	return written, nil
}

// header lists notes that must reach whoever applies the file.
func header(m *Migration) string {
	var lines []string
	for _, n := range m.BreakingNotes() {
		lines = append(lines, "BREAKING: "+n)
	}
	for _, n := range m.UnresolvedNotes() {
		lines = append(lines, "UNRESOLVED: "+n)
	}
	return strings.Join(lines, "\n-- ")
}

// ReadDir validates the checksum of an atlas migration directory and
// returns the statements of its up files in version order.
func ReadDir(path string) ([]string, error) {
	dir, err := migrate.NewLocalDir(path)
	if err != nil {
		return nil, fmt.Errorf("open migration dir: %w", err)
	}
	if err := migrate.Validate(dir); err != nil {
		return nil, fmt.Errorf("validate migration dir: %w", err)
	}
	files, err := dir.Files()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var stmts []string
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".down.sql") {
			continue
		}
		fs, err := f.Stmts()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}
		for _, s := range fs {
			s = strings.TrimSuffix(strings.TrimSpace(s), ";")
			if s != "" {
				stmts = append(stmts, s)
			}
		}
	}
	return stmts, nil
}
