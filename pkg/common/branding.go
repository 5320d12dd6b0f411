package common

import (
	"fmt"
	"io"
)

// Version is overridden at build time with -ldflags.
var Version = "v0.1.0"

func PrintBanner(w io.Writer) {
	banner := fmt.Sprintf(`
 __  __            _        _   _                __  __  ____ ____
|  \/  | __ _ _ __| | _____| |_(_)_ __   __ _   |  \/  |/ ___|  _ \
| |\/| |/ _`+"`"+` | '__| |/ / _ \ __| | '_ \ / _`+"`"+` |  | |\/| | |   | |_) |
| |  | | (_| | |  |   <  __/ |_| | | | | (_| |  | |  | | |___|  __/
|_|  |_|\__,_|_|  |_|\_\___|\__|_|_| |_|\__, |  |_|  |_|\____|_|
                                        |___/
MARKETING MCP %s
Read-only content tools for AI agents | (c) EdgeOps Labs
`, Version)

	fmt.Fprint(w, banner)
}
