// Package mirror persists users and classes as JSON documents under a root
// directory and reloads them at startup.
//
// Layout:
//
//	<root>/<user_id>/user.json
//	<root>/<user_id>/<item_id>/meta.json
//	<root>/<user_id>/<item_id>/partials/<name>.json
//
// meta.json is authoritative. The per-partial files are a derived export and
// are never read back.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/types"
)

const (
	userDocName  = "user.json"
	classDocName = "meta.json"
	partialsDir  = "partials"
	dirPerm      = 0o755
	filePerm     = 0o600
)

// Mirror writes and reads the persisted documents.
type Mirror struct {
	root string
	log  logging.Logger
}

// New creates root if needed and returns a Mirror over it.
func New(root string, log logging.Logger) (*Mirror, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", root, err)
	}
	return &Mirror{root: root, log: log.With("component", "mirror")}, nil
}

// Root returns the persistence root.
func (m *Mirror) Root() string {
	return m.root
}

// classDoc is the on-disk shape of a class.
type classDoc struct {
	ItemID   int             `json:"item_id"`
	Name     string          `json:"name"`
	Price    float64         `json:"price"`
	IsOffer  bool            `json:"is_offer"`
	Partials []types.Partial `json:"partials"`
	Owner    string          `json:"owner"`
	OwnerID  string          `json:"owner_id,omitempty"`
}

// Snapshot is everything LoadAll found on disk.
type Snapshot struct {
	Users   []types.User
	Classes []types.Class
}

func (m *Mirror) userDir(userID string) string {
	return filepath.Join(m.root, userID)
}

func (m *Mirror) classDir(ownerKey string, itemID int) string {
	return filepath.Join(m.root, ownerKey, strconv.Itoa(itemID))
}

// SaveUser writes the full user record, password hash included.
func (m *Mirror) SaveUser(ctx context.Context, user types.User) error {
	if user.UserID == "" {
		return errors.New("user id is required")
	}
	dir := m.userDir(user.UserID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	return writeJSON(filepath.Join(dir, userDocName), user)
}

// RemoveUser deletes the user's directory tree, classes included.
func (m *Mirror) RemoveUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	return os.RemoveAll(m.userDir(userID))
}

// SaveClass writes the class document under ownerKey, then refreshes the
// per-partial export. Failures in the export are logged and ignored.
func (m *Mirror) SaveClass(ctx context.Context, ownerKey string, class types.Class) error {
	if ownerKey == "" {
		return errors.New("owner key is required")
	}
	dir := m.classDir(ownerKey, class.ItemID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create class dir: %w", err)
	}

	partials := class.Partials
	if partials == nil {
		partials = []types.Partial{}
	}
	doc := classDoc{
		ItemID:   class.ItemID,
		Name:     class.Name,
		Price:    class.Price,
		IsOffer:  class.IsOffer,
		Partials: partials,
		Owner:    class.Owner,
		OwnerID:  ownerKey,
	}
	if err := writeJSON(filepath.Join(dir, classDocName), doc); err != nil {
		return err
	}

	m.dumpPartials(ctx, dir, class)
	return nil
}

func (m *Mirror) dumpPartials(ctx context.Context, classDir string, class types.Class) {
	dir := filepath.Join(classDir, partialsDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		m.log.Warn(ctx, "create partials dir failed", "item_id", class.ItemID, "err", err)
		return
	}

	stale := make(map[string]struct{})
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.log.Warn(ctx, "list partials dir failed", "item_id", class.ItemID, "err", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			stale[e.Name()] = struct{}{}
		}
	}

	used := make(map[string]struct{}, len(class.Partials))
	for _, p := range class.Partials {
		name := uniqueName(PartialFilename(p.Name), used)
		used[name] = struct{}{}
		delete(stale, name)

		if err := writeJSON(filepath.Join(dir, name), p); err != nil {
			m.log.Warn(ctx, "partial dump failed", "item_id", class.ItemID, "partial", p.Name, "err", err)
		}
	}

	for name := range stale {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn(ctx, "stale partial cleanup failed", "item_id", class.ItemID, "file", name, "err", err)
		}
	}
}

// RemoveClass deletes the class directory. Missing directories are fine.
func (m *Mirror) RemoveClass(ctx context.Context, ownerKey string, itemID int) error {
	if ownerKey == "" {
		return errors.New("owner key is required")
	}
	return os.RemoveAll(m.classDir(ownerKey, itemID))
}

// LoadAll walks the root and returns every readable user and class.
// Unreadable or corrupt documents are logged and skipped.
func (m *Mirror) LoadAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	userDirs, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snap, nil
		}
		return snap, fmt.Errorf("read data dir: %w", err)
	}

	for _, ud := range userDirs {
		if !ud.IsDir() {
			continue
		}
		ownerKey := ud.Name()
		dir := filepath.Join(m.root, ownerKey)

		var owner *types.User
		userPath := filepath.Join(dir, userDocName)
		if fileExists(userPath) {
			var u types.User
			if err := readJSON(userPath, &u); err != nil {
				m.log.Warn(ctx, "skipping corrupt user document", "path", userPath, "err", err)
			} else {
				if u.UserID == "" {
					u.UserID = ownerKey
				}
				snap.Users = append(snap.Users, u)
				owner = &u
			}
		}

		classDirs, err := os.ReadDir(dir)
		if err != nil {
			m.log.Warn(ctx, "skipping unreadable user dir", "path", dir, "err", err)
			continue
		}
		for _, cd := range classDirs {
			if !cd.IsDir() {
				continue
			}
			dirID, err := strconv.Atoi(cd.Name())
			if err != nil {
				continue
			}
			metaPath := filepath.Join(dir, cd.Name(), classDocName)
			if !fileExists(metaPath) {
				continue
			}
			var doc classDoc
			if err := readJSON(metaPath, &doc); err != nil {
				m.log.Warn(ctx, "skipping corrupt class document", "path", metaPath, "err", err)
				continue
			}
			snap.Classes = append(snap.Classes, doc.class(dirID, ownerKey, owner))
		}
	}

	m.log.Info(ctx, "mirror loaded", "users", len(snap.Users), "classes", len(snap.Classes))
	return snap, nil
}

func (d classDoc) class(dirID int, ownerKey string, owner *types.User) types.Class {
	itemID := d.ItemID
	if itemID == 0 {
		itemID = dirID
	}
	name := d.Name
	if name == "" {
		name = "Untitled"
	}
	ownerName := d.Owner
	if owner != nil {
		ownerName = owner.Username
	}
	partials := d.Partials
	if partials == nil {
		partials = []types.Partial{}
	}
	return types.Class{
		ItemID:   itemID,
		Name:     name,
		Price:    d.Price,
		IsOffer:  d.IsOffer,
		Owner:    ownerName,
		OwnerID:  ownerKey,
		Partials: partials,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON replaces path through a temp file and rename so readers never
// see a half-written document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
