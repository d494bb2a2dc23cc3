package logging

import (
	"fmt"
	"time"
)

// Logf prints a timestamped log line. Subsystems prefix their messages with a
// bracketed tag, e.g. Logf("[JANITOR] swept %d artifacts", n).
func Logf(format string, v ...interface{}) {
	fmt.Printf("[%s] "+format+"\n", append([]interface{}{time.Now().Format(time.RFC3339)}, v...)...)
}
