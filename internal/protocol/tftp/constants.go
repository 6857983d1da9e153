package tftp

// TFTP Opcodes (RFC 1350, RFC 2347)
const (
	// OpcodeRRQ is a read request
	OpcodeRRQ uint16 = 1

	// OpcodeWRQ is a write request. Recognized only so it can be rejected
	// with ErrCodeIllegalOperation; this server never serves writes.
	OpcodeWRQ uint16 = 2

	// OpcodeDATA carries one block of file data
	OpcodeDATA uint16 = 3

	// OpcodeACK acknowledges one DATA block (or an OACK, as block 0)
	OpcodeACK uint16 = 4

	// OpcodeERROR terminates a transfer with an error code and message
	OpcodeERROR uint16 = 5

	// OpcodeOACK acknowledges negotiated options (RFC 2347)
	OpcodeOACK uint16 = 6
)

// Transfer modes (RFC 1350)
const (
	ModeOctet    = "octet"
	ModeNetascii = "netascii"
)

// TFTP error codes (RFC 1350, RFC 2347)
const (
	ErrCodeUndefined         uint16 = 0 // Not defined, see error message
	ErrCodeFileNotFound      uint16 = 1
	ErrCodeAccessViolation   uint16 = 2
	ErrCodeDiskFull          uint16 = 3
	ErrCodeIllegalOperation  uint16 = 4
	ErrCodeUnknownTransferID uint16 = 5
	ErrCodeFileExists        uint16 = 6
	ErrCodeNoSuchUser        uint16 = 7
	ErrCodeInvalidOptions    uint16 = 8 // RFC 2347
)

// Negotiable option names (RFC 2348, RFC 2349)
const (
	OptionBlocksize    = "blksize"
	OptionTimeout      = "timeout"
	OptionTransferSize = "tsize"
)

const (
	// DefaultBlocksize is the fixed block size of RFC 1350 transfers.
	DefaultBlocksize = 512

	// MinBlocksize and MaxBlocksize bound the blksize option (RFC 2348).
	MinBlocksize = 8
	MaxBlocksize = 65464

	// MinTimeoutSeconds and MaxTimeoutSeconds bound the timeout option
	// (RFC 2349).
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 255

	// MaxBlockNumber is the largest representable block number. Block
	// numbers wrap to 0 past this value for large transfers.
	MaxBlockNumber = 65535
)
