package steamcmd

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"
)

// AlliedMods drop sites for metamod and sourcemod builds
const (
	// DefaultMetamodDropURL is the metamod build drop
	DefaultMetamodDropURL = "https://mms.alliedmods.net/mmsdrop"

	// DefaultSourcemodDropURL is the sourcemod build drop
	DefaultSourcemodDropURL = "https://sm.alliedmods.net/smdrop"

	// DefaultMetamodVersion is the metamod branch to track
	DefaultMetamodVersion = "1.11"

	// DefaultSourcemodVersion is the sourcemod branch to track
	DefaultSourcemodVersion = "1.10"
)

// AdminGroup describes one sourcemod admin group with its permission flags
// and immunity level
type AdminGroup struct {
	Name     string
	Flags    string
	Immunity int
}

// Admin describes one sourcemod admin entry: a Steam identity, the group it
// belongs to, and an optional console password
type Admin struct {
	Identity string
	Group    string
	Password string
}

// ModInstaller downloads and installs metamod/sourcemod for one instance
// and maintains the sourcemod admin configuration files
type ModInstaller struct {
	// Instance is the target deployment
	Instance *ServerInstance
	// HTTPClient performs drop-site requests
	HTTPClient *http.Client
	// MetamodDropURL is the metamod build drop
	MetamodDropURL string
	// SourcemodDropURL is the sourcemod build drop
	SourcemodDropURL string
	// MetamodVersion is the metamod branch to track
	MetamodVersion string
	// SourcemodVersion is the sourcemod branch to track
	SourcemodVersion string
	// Log receives install progress
	Log *logrus.Logger
}

// NewModInstaller creates a ModInstaller for inst with default settings
func NewModInstaller(inst *ServerInstance) *ModInstaller {
	return &ModInstaller{
		Instance:         inst,
		HTTPClient:       &http.Client{Timeout: time.Minute},
		MetamodDropURL:   DefaultMetamodDropURL,
		SourcemodDropURL: DefaultSourcemodDropURL,
		MetamodVersion:   DefaultMetamodVersion,
		SourcemodVersion: DefaultSourcemodVersion,
		Log:              discardLogger(),
	}
}

// WithModLogger sets the logger install progress is reported to
func (m *ModInstaller) WithModLogger(log *logrus.Logger) *ModInstaller {
	if log != nil {
		m.Log = log
	}
	return m
}

// InstallMetamod installs or updates metamod into the instance's game dir
func (m *ModInstaller) InstallMetamod(ctx context.Context) error {
	return m.installDrop(ctx, m.MetamodDropURL, m.MetamodVersion,
		"mmsource-latest-"+runtime.GOOS, "metamod.tar.gz")
}

// InstallSourcemod installs or updates sourcemod into the instance's game dir
func (m *ModInstaller) InstallSourcemod(ctx context.Context) error {
	return m.installDrop(ctx, m.SourcemodDropURL, m.SourcemodVersion,
		"sourcemod-latest-"+runtime.GOOS, "sourcemod.tar.gz")
}

// installDrop discovers the latest build on an alliedmods drop, downloads
// it unless the local archive is already current, and extracts it into the
// game directory. Currency check mirrors the drop's semantics: same size
// and a local copy at least as new as the remote build.
func (m *ModInstaller) installDrop(ctx context.Context, dropURL, version, latestSuffix, archiveName string) error {
	if !m.Instance.Server.Sourcemod {
		m.Log.WithField("server", m.Instance.Server.Name).Warn("server is not sourcemod-capable, skipping")
		return nil
	}

	latestURL := fmt.Sprintf("%s/%s/%s", dropURL, version, latestSuffix)
	buildName, err := m.fetchLatestName(ctx, latestURL)
	if err != nil {
		return &OpError{Op: OpInstall, Path: latestURL, Err: err}
	}

	downloadURL := fmt.Sprintf("%s/%s/%s", dropURL, version, buildName)
	archivePath := filepath.Join(m.Instance.AddonsPath(), archiveName)

	current, err := m.archiveCurrent(ctx, downloadURL, archivePath)
	if err != nil {
		return &OpError{Op: OpInstall, Path: archivePath, Err: err}
	}
	if current {
		m.Log.WithField("build", buildName).Info("already installed, skipping")
		return nil
	}

	m.Log.WithField("url", downloadURL).Info("downloading build")
	if err := m.downloadArchive(ctx, downloadURL, archivePath); err != nil {
		return &OpError{Op: OpInstall, Path: archivePath, Err: err}
	}

	if err := extractTarGz(archivePath, m.Instance.GamePath()); err != nil {
		return &OpError{Op: OpInstall, Path: archivePath, Err: err}
	}

	return nil
}

// fetchLatestName retrieves the file name of the latest build
func (m *ModInstaller) fetchLatestName(ctx context.Context, latestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("latest-build lookup status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// archiveCurrent reports whether the local archive already matches the
// remote build, using a HEAD request's Content-Length and Last-Modified
func (m *ModInstaller) archiveCurrent(ctx context.Context, downloadURL, archivePath string) (bool, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, downloadURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	remoteSize, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return false, nil
	}
	remoteTime, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return false, nil
	}

	return remoteSize == info.Size() && !remoteTime.After(info.ModTime()), nil
}

// downloadArchive streams the build archive to disk, creating the addons
// directory if the game has never had one
func (m *ModInstaller) downloadArchive(ctx context.Context, downloadURL, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), DirMode); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return err
	}

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(archivePath, renameio.WithPermissions(FileMode))
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, resp.Body); err != nil {
		return err
	}

	return pending.CloseAtomicallyReplace()
}

// extractTarGz unpacks a tar.gz archive into destDir, rejecting entries
// that would escape it
func extractTarGz(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.Clean(header.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %q", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, DirMode); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), DirMode); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, reader); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

// adminGroupsTemplate renders sourcemod's admin_groups.cfg
var adminGroupsTemplate = template.Must(template.New("admin_groups").Parse(`Groups
{
{{- range .}}
	"{{.Name}}"
	{
		"flags" "{{.Flags}}"
		"immunity" "{{.Immunity}}"
	}
{{- end}}
}
`))

// adminsTemplate renders sourcemod's admins_simple.ini
var adminsTemplate = template.Must(template.New("admins_simple").Parse(`{{- range .}}
"{{.Identity}}" "@{{.Group}}"{{if .Password}} "{{.Password}}"{{end}}
{{- end}}
`))

// WriteAdminGroups replaces the sourcemod admin_groups.cfg with the given
// groups
func (m *ModInstaller) WriteAdminGroups(groups []AdminGroup) error {
	path := filepath.Join(m.Instance.AddonsPath(), "sourcemod", "configs", "admin_groups.cfg")
	return m.renderConfig(path, adminGroupsTemplate, groups)
}

// WriteAdmins replaces the sourcemod admins_simple.ini with the given admins
func (m *ModInstaller) WriteAdmins(admins []Admin) error {
	path := filepath.Join(m.Instance.AddonsPath(), "sourcemod", "configs", "admins_simple.ini")
	return m.renderConfig(path, adminsTemplate, admins)
}

// renderConfig renders tmpl with data and writes it atomically to path
func (m *ModInstaller) renderConfig(path string, tmpl *template.Template, data any) error {
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return &OpError{Op: OpRender, Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return &OpError{Op: OpRender, Path: path, Err: err}
	}
	if err := renameio.WriteFile(path, []byte(out.String()), FileMode); err != nil {
		return &OpError{Op: OpRender, Path: path, Err: err}
	}
	return nil
}
