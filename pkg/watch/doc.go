// Package watch reapplies a fleet model file each time it is saved.
//
// ModelWatcher watches the file's directory with fsnotify, debounces
// bursts of writes, parses the file with config.LoadModel and hands every
// valid revision to an ApplyFunc. Revisions that fail to parse are logged
// and skipped.
package watch
