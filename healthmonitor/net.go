package healthmonitor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"time"
)

func doHttp(ctx context.Context, u url.URL, path string, timeout time.Duration) (int, error) {
	client := http.Client{
		Timeout: timeout,
	}

	target := u
	if path != "" {
		target.Path = path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func doTcp(u url.URL, timeout time.Duration) error {
	address := fmt.Sprintf("%s:%s", u.Hostname(), u.Port())
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func doIcmp(u url.URL, timeout time.Duration) error {
	host := u.Hostname()
	return exec.Command(
		"ping",
		"-c", "1", "-W", fmt.Sprintf("%.0f", timeout.Seconds()),
		host,
	).Run()
}
