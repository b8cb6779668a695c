package ext2

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ascvorcov/vfs/backend"
	vfsfile "github.com/ascvorcov/vfs/backend/file"
)

// Params configures a volume mount or format: a human-readable label
// (in-memory only, never written to disk) and an optional per-volume
// logger override.
type Params struct {
	VolumeName string
	Logger     logrus.FieldLogger
}

func (p Params) applyTo(m *MasterRecord) *MasterRecord {
	if p.Logger != nil {
		m.SetLogger(p.Logger)
	}
	return m
}

// Create formats a brand new volume image of sizeBytes at hostPath and
// mounts it.
func Create(hostPath string, sizeBytes int64, params Params) (*MasterRecord, error) {
	storage, err := vfsfile.CreateFromPath(hostPath, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("create volume %s: %w", hostPath, err)
	}
	master, err := CreateNewVolume(storage, sizeBytes, params.VolumeName)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return params.applyTo(master), nil
}

// Mount opens an existing volume image at hostPath.
func Mount(hostPath string, readOnly bool, params Params) (*MasterRecord, error) {
	storage, err := vfsfile.OpenFromPath(hostPath, readOnly)
	if err != nil {
		return nil, fmt.Errorf("mount volume %s: %w", hostPath, err)
	}
	master, err := LoadVolume(storage, params.VolumeName)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return params.applyTo(master), nil
}

// MountNested opens (or formats, if formatSizeBytes > 0) a volume backed
// by an already-open file handle living inside another mounted volume:
// a file inside one VFS image serving as the backing store for another.
// Dispose on the returned MasterRecord closes inner, releasing its node
// lock; File.Close is idempotent, so a later Close by the caller is
// harmless.
func MountNested(inner *File, formatSizeBytes int64, params Params) (*MasterRecord, error) {
	storage := newInnerBackend(inner)
	var master *MasterRecord
	var err error
	if formatSizeBytes > 0 {
		master, err = CreateNewVolume(storage, formatSizeBytes, params.VolumeName)
	} else {
		master, err = LoadVolume(storage, params.VolumeName)
	}
	if err != nil {
		return nil, err
	}
	return params.applyTo(master), nil
}

// Registry tracks the volumes a process has mounted, so callers can
// enumerate "drives" by label the way a host filesystem enumerates
// mount points.
type Registry struct {
	mu      sync.Mutex
	volumes map[string]*MasterRecord
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{volumes: make(map[string]*MasterRecord)}
}

// Add registers master under its VolumeName. It is an error to reuse a
// name already present in the registry.
func (r *Registry) Add(master *MasterRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.volumes[master.VolumeName]; exists {
		return fmt.Errorf("%w: volume name %q already registered", ErrAlreadyExists, master.VolumeName)
	}
	r.volumes[master.VolumeName] = master
	return nil
}

// Remove unregisters and returns the volume named name, if present.
func (r *Registry) Remove(name string) (*MasterRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.volumes[name]
	if ok {
		delete(r.volumes, name)
	}
	return m, ok
}

// Get returns the volume named name, if registered.
func (r *Registry) Get(name string) (*MasterRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.volumes[name]
	return m, ok
}

// GetDrives returns the labels of every currently registered volume.
func (r *Registry) GetDrives() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.volumes))
	for name := range r.volumes {
		names = append(names, name)
	}
	return names
}

var _ backend.Storage = (*innerBackend)(nil)
