// Command update-minute runs the external update process for intraday bars.
//
//	update-minute <start_date> <end_date> <adjust_factor> <frequency>
package main

import (
	"os"

	"github.com/shupiange/mephisto-quant/internal/wrapper"
	"github.com/shupiange/mephisto-quant/services"
)

func main() {
	os.Exit(wrapper.Main(services.UpdateMinute, os.Args[1:]))
}
