package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config.
func Template() string {
	return template
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `# data/ and logs/ are created under base_dir.
base_dir = "."
# metrics_textfile = "/var/lib/node_exporter/textfile/pdbench.prom"

[docker]
# host = "unix:///var/run/docker.sock"

# Run docker exec on a remote host instead of locally.
# [ssh]
# host = "bench.example.com"
# port = "22"
# user = "bench"
# key_path = "~/.ssh/id_ed25519"
# known_hosts = "~/.ssh/known_hosts"
# timeout = "10s"

[integrations.chisel]
container = "pdb-chisel"

[integrations.razor]
container = "pdb-razor"

# A rule-driven integration of your own.
[integrations.toy]
container = "pdb-toy"
any_files = ["Makefile"]
excluded_dirs = [".git"]
command = "make -C {examples}/{example}"
`
