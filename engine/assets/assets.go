package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// DefaultDebounce groups the burst of write events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// ChangeFunc is called with the path of a modified asset.
type ChangeFunc func(path string)

type AssetManager struct {
	assets    map[string]AssetInfo
	loaders   map[AssetType]Loader
	listeners map[AssetType][]ChangeFunc
	timers    map[string]*time.Timer
	debounce  time.Duration

	mutex sync.RWMutex
	once  sync.Once

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:    make(map[string]AssetInfo),
		loaders:   make(map[AssetType]Loader),
		listeners: make(map[AssetType][]ChangeFunc),
		timers:    make(map[string]*time.Timer),
		debounce:  DefaultDebounce,
		fsnotify:  fsWatch,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	am.registerDefaultLoaders()
	return am, nil
}

// SetDebounce changes the delay between the last write of a file and the
// change callbacks.
func (am *AssetManager) SetDebounce(d time.Duration) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.debounce = d
}

// Initialize indexes assetsDir and starts watching it and its
// sub-directories.
func (am *AssetManager) Initialize(assetsDir string) error {
	am.once.Do(func() { go am.start() })
	return am.addRecursive(assetsDir)
}

// Watch starts watching a single file or directory.
func (am *AssetManager) Watch(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	am.once.Do(func() { go am.start() })
	// editors replace files on save, so the parent directory is watched
	dir := name
	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		dir = filepath.Dir(name)
		am.handleFileEvent(filepath.Clean(name))
	}
	return am.fsnotify.Add(dir)
}

func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name)
}

// OnChange registers fn for every debounced modification of an asset of
// type t.
func (am *AssetManager) OnChange(t AssetType, fn ChangeFunc) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.listeners[t] = append(am.listeners[t], fn)
}

func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// Asset returns the index entry of path.
func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

// Load decodes the asset at path with the loader of its type.
func (am *AssetManager) Load(path string) (interface{}, error) {
	path = filepath.Clean(path)
	assetType := determineAssetType(path)

	am.mutex.RLock()
	loader, ok := am.loaders[assetType]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s asset %s: %w", assetType, path, core.ErrInvalidData)
	}

	data, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	return data, nil
}

// Close stops the watcher goroutine and the pending callbacks.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	for path, t := range am.timers {
		t.Stop()
		delete(am.timers, path)
	}
	am.mutex.Unlock()

	started := true
	am.once.Do(func() { started = false })
	if !started {
		return am.fsnotify.Close()
	}
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
				if e.Has(fsnotify.Create) {
					am.watchRecursive(e.Name)
				}
				continue
			}
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
				if am.handleFileEvent(filepath.Clean(e.Name)) {
					am.schedule(filepath.Clean(e.Name))
				}
			}
			if e.Has(fsnotify.Remove) {
				am.removeAsset(filepath.Clean(e.Name))
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// schedule restarts the debounce timer of path.
func (am *AssetManager) schedule(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return
	}
	if t, ok := am.timers[path]; ok {
		t.Stop()
	}
	am.timers[path] = time.AfterFunc(am.debounce, func() {
		am.notify(path)
	})
}

func (am *AssetManager) notify(path string) {
	am.mutex.Lock()
	delete(am.timers, path)
	info, ok := am.assets[path]
	var listeners []ChangeFunc
	if ok {
		listeners = append(listeners, am.listeners[info.Type]...)
	}
	am.mutex.Unlock()

	for _, fn := range listeners {
		fn(path)
	}
}

// watchRecursive adds every directory under path to the watch list and
// indexes the files found.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(filepath.Clean(walkPath))
		return nil
	})
}

// handleFileEvent indexes path and reports whether it is a known asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info, ok := am.assets[path]
	if !ok {
		info = AssetInfo{Path: path, Type: assetType}
	}
	am.assets[path] = info
	return true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}
