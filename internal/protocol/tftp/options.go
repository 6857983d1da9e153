package tftp

import (
	"strconv"
	"time"
)

// NegotiatedOptions is the immutable result of option negotiation. It is
// produced once per session, before the first DATA block, and never changes
// afterwards.
type NegotiatedOptions struct {
	// Blocksize is the DATA payload size in bytes. 512 unless the client
	// negotiated otherwise.
	Blocksize int

	// Timeout is the retransmission interval. Taken from the server default
	// unless the client negotiated the timeout option.
	Timeout time.Duration

	// TransferSize is the total transfer size echoed in the OACK, or -1
	// when tsize was not negotiated (not requested, or size unknown).
	TransferSize int64

	// Acknowledged lists exactly the options to send back in an OACK, in
	// the order they will appear on the wire. Empty when no OACK is due.
	Acknowledged []Option
}

// Defaults carries the server-side values used when the client does not
// negotiate an option.
type Defaults struct {
	Blocksize int
	Timeout   time.Duration
}

// SizeFunc reports the total size of the data source, with ok=false when
// the size is unknown. Negotiate calls it only when the client requested
// tsize, since computing the size may be expensive (e.g. netascii sources
// must encode the whole stream).
type SizeFunc func() (n int64, ok bool)

// Negotiate applies server policy to the options requested in an RRQ.
//
// Recognized options (blksize, timeout, tsize) are clamped into their RFC
// ranges; unrecognized options and options with non-numeric values are
// silently ignored per RFC 2347. ackRequired reports whether the session
// must reply with an OACK: it is true iff at least one recognized option
// was accepted, and false for a plain RFC 1350 request, in which case the
// returned options are the server defaults.
func Negotiate(requested []Option, defaults Defaults, size SizeFunc) (neg NegotiatedOptions, ackRequired bool) {
	neg = NegotiatedOptions{
		Blocksize:    defaults.Blocksize,
		Timeout:      defaults.Timeout,
		TransferSize: -1,
	}
	if neg.Blocksize == 0 {
		neg.Blocksize = DefaultBlocksize
	}

	for _, opt := range requested {
		switch opt.Name {
		case OptionBlocksize:
			v, err := strconv.Atoi(opt.Value)
			if err != nil {
				continue
			}
			neg.Blocksize = clamp(v, MinBlocksize, MaxBlocksize)
			neg.Acknowledged = append(neg.Acknowledged, Option{
				Name:  OptionBlocksize,
				Value: strconv.Itoa(neg.Blocksize),
			})

		case OptionTimeout:
			v, err := strconv.Atoi(opt.Value)
			if err != nil {
				continue
			}
			seconds := clamp(v, MinTimeoutSeconds, MaxTimeoutSeconds)
			neg.Timeout = time.Duration(seconds) * time.Second
			neg.Acknowledged = append(neg.Acknowledged, Option{
				Name:  OptionTimeout,
				Value: strconv.Itoa(seconds),
			})

		case OptionTransferSize:
			if size == nil {
				continue
			}
			n, ok := size()
			if !ok {
				// size unknown: omit tsize from the OACK
				continue
			}
			neg.TransferSize = n
			neg.Acknowledged = append(neg.Acknowledged, Option{
				Name:  OptionTransferSize,
				Value: strconv.FormatInt(n, 10),
			})
		}
	}

	return neg, len(neg.Acknowledged) > 0
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
