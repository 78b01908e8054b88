package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fileScannerImpl implements the FileScanner interface over an fs.FS
type fileScannerImpl struct {
	files fs.FS
	// migrationFilePattern defines the expected migration file naming pattern
	migrationFilePattern *regexp.Regexp
}

// NewFileScanner creates a FileScanner reading migrations from files.
func NewFileScanner(files fs.FS) FileScanner {
	// Pattern matches: {version}_{description}.sql
	pattern := regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

	return &fileScannerImpl{
		files:                files,
		migrationFilePattern: pattern,
	}
}

// ScanMigrations scans dir for migration files, sorted by numeric version.
func (s *fileScannerImpl) ScanMigrations(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(s.files, dir)
	if err != nil {
		return nil, NewMigrationError("", dir, "read directory", err)
	}

	var migrations []Migration
	versionMap := make(map[string]string) // version -> filename for duplicate detection

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		if err := s.ValidateFileName(entry.Name()); err != nil {
			return nil, NewMigrationError("", entry.Name(), "validate filename", err)
		}

		migration, err := s.parseMigrationFile(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if existingFile, exists := versionMap[migration.Version]; exists {
			return nil, NewMigrationError(migration.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s",
					ErrDuplicateVersion, migration.Version, existingFile, entry.Name()))
		}
		versionMap[migration.Version] = entry.Name()

		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		versionI, _ := strconv.Atoi(migrations[i].Version)
		versionJ, _ := strconv.Atoi(migrations[j].Version)
		return versionI < versionJ
	})

	return migrations, nil
}

// ValidateFileName checks if migration file follows naming convention
func (s *fileScannerImpl) ValidateFileName(filename string) error {
	matches := s.migrationFilePattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'",
			ErrInvalidMigrationFile, filename)
	}

	if _, err := strconv.Atoi(matches[1]); err != nil {
		return fmt.Errorf("%w: version '%s' in filename '%s' is not a valid number",
			ErrInvalidVersion, matches[1], filename)
	}

	return nil
}

func (s *fileScannerImpl) parseMigrationFile(filePath string) (*Migration, error) {
	matches := s.migrationFilePattern.FindStringSubmatch(path.Base(filePath))
	version := matches[1]

	content, err := fs.ReadFile(s.files, filePath)
	if err != nil {
		return nil, NewMigrationError(version, filePath, "read file", err)
	}

	sqlContent := string(content)
	if strings.TrimSpace(stripComments(sqlContent)) == "" {
		return nil, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	description := extractDescription(sqlContent)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	return &Migration{
		Version:     version,
		Description: description,
		SQL:         sqlContent,
		FilePath:    filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

func stripComments(sql string) string {
	lines := strings.Split(sql, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx != -1 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, " ")
}

// extractDescription reads a leading "-- Description: ..." comment.
func extractDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if strings.HasPrefix(line, "-- Description:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "-- Description:"))
		}
	}
	return ""
}
