package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/wikiacrawl/internal/config"
)

// Project subdirectory names.
const (
	RawDir        = "raw"
	ProcessedDir  = "processed"
	CacheDir      = "cache"
	StateDir      = "crawl_state"
	ExportsDir    = "exports"
	LogsDir       = "logs"
	robotsSubdir  = "robots"
	projectsDir   = "projects"
	forbiddenName = `/\:*?"<>|`
)

// ErrInvalidProjectName is returned for blank names and names containing
// any of / \ : * ? " < > |.
var ErrInvalidProjectName = fmt.Errorf("%w: invalid project name", config.ErrConfiguration)

// ErrProjectNotFound is returned by FindProject for a project that was never crawled.
var ErrProjectNotFound = errors.New("project not found")

// ValidateProjectName checks that name can be used as a directory name on
// every supported platform.
func ValidateProjectName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidProjectName)
	}
	if i := strings.IndexAny(name, forbiddenName); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidProjectName, name, name[i])
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	return nil
}

// Project is the directory tree of one crawl project.
type Project struct {
	Name string
	Root string
}

// ProjectPath returns the root directory of project name under dataDir
// without creating it.
func ProjectPath(dataDir, name string) string {
	return filepath.Join(dataDir, projectsDir, name)
}

// OpenProject validates name and creates the project tree under dataDir
// if it does not exist yet.
func OpenProject(dataDir, name string) (*Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}
	p := &Project{Name: name, Root: ProjectPath(dataDir, name)}
	for _, dir := range []string{
		p.Dir(RawDir),
		p.Dir(ProcessedDir),
		p.RobotsCacheDir(),
		p.Dir(StateDir),
		p.Dir(ExportsDir),
		p.Dir(LogsDir),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create project directory %s: %w", dir, err)
		}
	}
	return p, nil
}

// FindProject returns an existing project under dataDir without creating
// anything.
func FindProject(dataDir, name string) (*Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}
	p := &Project{Name: name, Root: ProjectPath(dataDir, name)}
	info, err := os.Stat(p.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q in %s", ErrProjectNotFound, name, dataDir)
	}
	return p, nil
}

// Dir returns the path of a project subdirectory.
func (p *Project) Dir(name string) string {
	return filepath.Join(p.Root, name)
}

// RobotsCacheDir is where fetched robots.txt bodies are cached.
func (p *Project) RobotsCacheDir() string {
	return filepath.Join(p.Root, CacheDir, robotsSubdir)
}

// StateStore returns the crawl state store of the project.
func (p *Project) StateStore() *StateStore {
	return &StateStore{path: filepath.Join(p.Dir(StateDir), StateFileName)}
}

// ArtifactStore returns the page artifact store of the project.
func (p *Project) ArtifactStore() *ArtifactStore {
	return &ArtifactStore{project: p}
}
