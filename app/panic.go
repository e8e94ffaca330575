package app

import (
	"log/slog"
	"strings"

	"sparksched/kernel"
)

func installPanicHandler(k *kernel.Kernel, log *slog.Logger) {
	k.SetPanicHandler(func(info kernel.PanicInfo) {
		log.Error("kernel panic", "tid", info.TID, "thread", info.Thread, "panic", info.Value)
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			log.Error("  " + line)
		}
	})
}
