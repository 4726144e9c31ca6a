package instance

import "os"

// GetID names the running process for logs: an explicit instance id, then the
// platform's dyno name, then the host name.
func GetID() string {
	for _, key := range []string{"REPLENISH_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
