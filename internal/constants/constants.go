package constants

import "errors"

// RequiredPackages is the package subset every takeover depends on.
// Caller-supplied additions are appended to this set, never substituted for it.
// The package-manager client is stripped later when the resolved set excludes it.
func RequiredPackages() []string {
	return []string{"alpine-base", "busybox-static", "openssh", PackageManagerPkg}
}

// RequiredTools is the fixed list of host binaries the takeover needs.
// The stub generated at pivot time is interpreted by the host's /bin/sh,
// everything else is done through syscalls or binaries inside the image.
func RequiredTools() []string {
	return []string{"sh"}
}

// HostKeyTypes are the host identity keys regenerated for the remote-access
// daemon on every run.
func HostKeyTypes() []string {
	return []string{"rsa", "ecdsa", "ed25519"}
}

var (
	ErrAlreadyMounted  = errors.New("already mounted")
	ErrUnsupportedArch = errors.New("unsupported architecture")
	ErrOperatorAbort   = errors.New("aborted by operator")
	ErrNotCommittable  = errors.New("pivot not in a committable state")
)

const (
	OpPreflight       = "preflight"
	OpMountStaging    = "mount-staging"
	OpGenerateSecret  = "generate-secret"
	OpBootstrapTool   = "bootstrap-tool"
	OpRepositories    = "write-repositories"
	OpTrustAnchors    = "install-keys"
	OpInstallRequired = "install-required"
	OpInstallExtra    = "install-extra"
	OpReleaseFile     = "release-file"
	OpHardenImage     = "harden-image"
	OpCustomize       = "customize"
	OpBuildCleanup    = "build-cleanup"
	OpPrepareEnv      = "prepare-env"
	OpWriteFstab      = "write-fstab"
	OpTakeTerminal    = "take-terminal"
	OpSetCredentials  = "set-credentials"
	OpInitStub        = "init-stub"
	OpRemoteAccess    = "remote-access"
	OpCommit          = "commit"
	OpReexec          = "reexec-init"
)

const (
	// DefaultStagingDir is where the tmpfs that becomes the new root is mounted.
	DefaultStagingDir = "/takeover"
	// OldRootDir is the subdirectory, relative to the new root, that pivot_root
	// parks the displaced original root under.
	OldRootDir = "oldroot"
	// ChrootScriptMount is where the caller's working directory is bound in
	// isolated customization mode.
	ChrootScriptMount = "/mnt"

	PackageManagerPkg = "apk-tools"
	PackageManagerBin = "apk"
	StaticToolName    = "apk.static"
	VirtualPackage    = ".takeover-deps"
	ReleasePackage    = "alpine-release"
	ReleaseFile       = "etc/alpine-release"

	FstabFile        = "etc/fstab"
	RepositoriesFile = "etc/apk/repositories"
	KeysDir          = "etc/apk/keys"
	HostKeysDir      = "/etc/apk/keys"
	CacheDir         = "var/cache/apk"
	PkgLibDir        = "lib/apk"

	// SentinelPrefix marks a resolv.conf we wrote ourselves so cleanup never
	// removes a caller-provided one.
	SentinelPrefix = "# takeover-dns-bridge "

	// ConfirmLiteral is what the operator must type, twice, to proceed.
	ConfirmLiteral = "OK"

	SecretLength   = 10
	SecretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	StubName = "takeover-init"

	DefaultBranch       = "v3.20"
	DefaultMirror       = "https://dl-cdn.alpinelinux.org/alpine"
	DefaultMountOptions = "size=50%,mode=0755"
	DefaultSSHPort      = 2222

	// DownloadTimeoutSeconds bounds the bootstrap-tool fetch. It is the only
	// bounded wait in the whole sequence.
	DownloadTimeoutSeconds = 60

	// ReexecSettleSeconds is how long we linger after triggering the init
	// re-exec, so the reloaded init can start before our own process tree
	// (and the terminal it holds) goes away.
	ReexecSettleSeconds = 10
)
