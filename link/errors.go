package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// wrapKind decorates err so that it matches kind with errors.Is while
// keeping err itself in the chain. A nil err is replaced by kind.
func wrapKind(kind, err error, at string, tag ftag.Kind, msg string) error {
	switch {
	case err == nil:
		err = kind

	case !errors.Is(err, kind):
		err = fmt.Errorf("%w: %w", kind, err)
	}

	return fault.Wrap(err,
		fctx.With(context.Background(), "error_at", at),
		ftag.With(tag),
		fmsg.With(msg),
	)
}
