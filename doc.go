/*
Package mirrorpush is a tool for publishing virtio-win releases to the
fedorapeople.org repository.

mirrorpush maintains a local mirror of the download tree and keeps the
published copy in sync, with features including:
  - Release and version discovery from RPM build output
  - Version-stamped download archives with redirect rules
  - Stable and latest package pools regenerated with createrepo_c
  - Two-phase rsync so metadata never precedes content
  - A mandatory dry-run review before anything is pushed

The main packages are:

	github.com/virtio-win/mirrorpush/internal/build  - Build output discovery and artifact collection
	github.com/virtio-win/mirrorpush/internal/rpmmd  - RPM repository metadata parsing
	github.com/virtio-win/mirrorpush/internal/repo   - Tree population, metadata generation and sync
	github.com/virtio-win/mirrorpush/cmd/mirrorpush  - Command-line interface
*/
package mirrorpush
