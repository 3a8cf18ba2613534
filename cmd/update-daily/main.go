// Command update-daily runs the external update process for daily quotes.
//
//	update-daily <start_date> <end_date> <adjust_factor> <fix>
package main

import (
	"os"

	"github.com/shupiange/mephisto-quant/internal/wrapper"
	"github.com/shupiange/mephisto-quant/services"
)

func main() {
	os.Exit(wrapper.Main(services.UpdateDaily, os.Args[1:]))
}
