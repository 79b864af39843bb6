package publish

import "github.com/teranos/snpm/errors"

// Stage names one step of a publish run
type Stage string

const (
	StageParse   Stage = "parse"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageInstall Stage = "install"
	StageBuild   Stage = "build"
	StageVerify  Stage = "verify"

	// StageDone is reported by a run that finished every stage
	StageDone Stage = "done"
)

// Stages lists the stages in execution order
var Stages = []Stage{StageParse, StageFetch, StageExtract, StageInstall, StageBuild, StageVerify}

// Messages sent to callers
const (
	MessageFetching    = "Fetching repo archive..."
	MessageExtracting  = "Decompressing repo archive..."
	MessageInstalling  = "Installing repo deps..."
	MessageBuilding    = "Building repo..."
	MessageVerifying   = "Checking checksum..."
	MessageFinished    = "Finished!"
	MessageMismatch    = "Build SHA1 checksum is different"
	MessageInvalidURL  = "Invalid Github URL"
	MessageInvalidVer  = "Invalid version"
	MessageInvalidSum  = "Invalid checksum"
	MessageInProgress  = "Publish already in progress"
	messageFetchFail   = "Cannot fetch project tar.gz"
	messageExtractFail = "Cannot untar project tar.gz"
	messageInstallFail = "Cannot install project dependencies"
	messageBuildFail   = "Cannot build project"
	messageVerifyFail  = "Cannot check project checksum"
)

// ProgressMessage is the text reported when stage starts. The parse stage
// has none.
func (s Stage) ProgressMessage() string {
	switch s {
	case StageFetch:
		return MessageFetching
	case StageExtract:
		return MessageExtracting
	case StageInstall:
		return MessageInstalling
	case StageBuild:
		return MessageBuilding
	case StageVerify:
		return MessageVerifying
	}
	return ""
}

// sentinel is the error class a failure in s carries
func (s Stage) sentinel() error {
	switch s {
	case StageParse:
		return errors.ErrInputValidation
	case StageFetch:
		return errors.ErrFetch
	case StageExtract:
		return errors.ErrExtract
	case StageInstall:
		return errors.ErrDependencyInstall
	case StageBuild:
		return errors.ErrBuild
	default:
		return errors.ErrIO
	}
}

// failureMessage is the short caller-facing text for err failing stage s
func failureMessage(s Stage, err error) string {
	switch s {
	case StageParse:
		// Validation errors carry their caller-facing text as the message
		return err.Error()
	case StageFetch:
		return messageFetchFail
	case StageExtract:
		return messageExtractFail
	case StageInstall:
		return messageInstallFail
	case StageBuild:
		return messageBuildFail
	}
	if errors.Is(err, errors.ErrChecksumMismatch) {
		return MessageMismatch
	}
	return messageVerifyFail
}
