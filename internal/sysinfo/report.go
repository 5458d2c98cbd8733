package sysinfo

import (
	"fmt"
	"os"
	"strings"
)

const packageListLimit = 50

// SystemReport summarizes the host for "ai sysinfo": kernel, CPU, memory
// and disk usage.
func SystemReport() string {
	var b strings.Builder
	b.WriteString("=== System Information ===\n\n")

	if uname := commandOutput("uname", "-a"); uname != "" {
		fmt.Fprintf(&b, "System: %s\n", uname)
	}

	if cpu := cpuModel(); cpu != "" {
		fmt.Fprintf(&b, "CPU: %s\n", cpu)
	}

	for _, line := range memoryLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if df := commandOutput("df", "-h", "/"); df != "" {
		b.WriteString("\nDisk Usage:\n")
		b.WriteString(df)
		b.WriteByte('\n')
	}

	return b.String()
}

// ServicesReport lists running services, preferring systemd and falling
// back to a raw process listing.
func ServicesReport() string {
	var b strings.Builder
	b.WriteString("=== Running Services ===\n\n")

	if services := commandOutput("systemctl", "list-units", "--type=service", "--state=running", "--no-pager"); services != "" {
		b.WriteString(services)
		return b.String()
	}
	if services := commandOutput("launchctl", "list"); services != "" {
		b.WriteString(services)
		return b.String()
	}
	if ps := commandOutput("ps", "aux"); ps != "" {
		b.WriteString("Running processes:\n")
		b.WriteString(ps)
	}

	return b.String()
}

// PackagesReport lists installed packages from the first package manager
// that responds, truncated to a readable length.
func PackagesReport() string {
	var b strings.Builder
	b.WriteString("=== Installed Packages ===\n\n")

	managers := []struct {
		name string
		args []string
	}{
		{"dpkg", []string{"-l"}},
		{"rpm", []string{"-qa"}},
		{"pacman", []string{"-Q"}},
		{"brew", []string{"list"}},
	}

	for _, pm := range managers {
		packages := commandOutput(pm.name, pm.args...)
		if packages == "" {
			continue
		}
		fmt.Fprintf(&b, "Package manager: %s\n\n", pm.name)
		lines := strings.Split(packages, "\n")
		if len(lines) > packageListLimit {
			b.WriteString(strings.Join(lines[:packageListLimit], "\n"))
			fmt.Fprintf(&b, "\n\n... and %d more packages", len(lines)-packageListLimit)
		} else {
			b.WriteString(packages)
		}
		return b.String()
	}

	b.WriteString("No package manager detected.\n")
	return b.String()
}

func cpuModel() string {
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "model name") {
				if _, v, ok := strings.Cut(line, ":"); ok {
					return strings.TrimSpace(v)
				}
			}
		}
	}
	return commandOutput("sysctl", "-n", "machdep.cpu.brand_string")
}

func memoryLines() []string {
	var lines []string
	if data, err := os.ReadFile("/proc/meminfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "MemTotal:") || strings.HasPrefix(line, "MemAvailable:") {
				lines = append(lines, line)
			}
		}
		return lines
	}
	if mem := commandOutput("sysctl", "-n", "hw.memsize"); mem != "" {
		lines = append(lines, "Memory: "+mem+" bytes")
	}
	return lines
}
