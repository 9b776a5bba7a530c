//go:build dev

package metrics

import (
	"fmt"
	"log"
	"time"

	"github.com/prometheus/procfs"
)

var (
	cpuSelfGauge   = NewGauge("cpu_self")
	memSelfGauge   = NewGauge("mem_self")
	networkRxGauge = NewGauge("network_rx")
	networkTxGauge = NewGauge("network_tx")
)

// InitProcStat starts sampling this process's CPU, memory and network
// counters from /proc every 100ms, so request latencies recorded by the
// CLI can be correlated with resource usage.
func InitProcStat() error {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return fmt.Errorf("create procfs: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	go func() {
		for range ticker.C {
			if err := getSelfStat(fs); err != nil {
				log.Printf("failed to get stat: %v", err)
			}
		}
	}()

	return nil
}

func getSelfStat(fs procfs.FS) error {
	proc, err := fs.Self()
	if err != nil {
		return fmt.Errorf("get self proc: %w", err)
	}

	stat, err := proc.Stat()
	if err != nil {
		return fmt.Errorf("get self stat: %w", err)
	}

	cpuSelfGauge.Set(float64(stat.CPUTime()), "total")
	memSelfGauge.Set(float64(stat.ResidentMemory()), "resident")
	memSelfGauge.Set(float64(stat.VirtualMemory()), "virtual")

	netDev, err := proc.NetDev()
	if err != nil {
		return fmt.Errorf("get net dev: %w", err)
	}

	for _, dev := range netDev {
		networkRxGauge.Set(float64(dev.RxBytes), dev.Name)
		networkTxGauge.Set(float64(dev.TxBytes), dev.Name)
	}

	return nil
}
