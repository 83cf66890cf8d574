package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	call(http.MethodGet, adminURL(*baseURL, "/admin/v1/state"), 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	call(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot"), 10*time.Second)
}

// warsCmd lists wars, or approves/denies a pending war:
//
//	admin wars [-faction F]
//	admin wars approve <war-id>
//	admin wars deny <war-id>
func warsCmd(args []string) {
	fs := flag.NewFlagSet("wars", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	faction := fs.String("faction", "", "only wars involving this faction")
	_ = fs.Parse(args)

	method, path, err := warsRequest(fs.Args(), *faction)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	call(method, adminURL(*baseURL, path), 5*time.Second)
}

func warsRequest(args []string, faction string) (method, path string, err error) {
	if len(args) == 0 || args[0] == "list" {
		path = "/admin/v1/wars"
		if faction != "" {
			path += "?faction=" + url.QueryEscape(faction)
		}
		return http.MethodGet, path, nil
	}
	switch args[0] {
	case "approve", "deny":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return "", "", fmt.Errorf("usage: wars %s <war-id>", args[0])
		}
		return http.MethodPost, "/admin/v1/wars/" + url.PathEscape(args[1]) + "/" + args[0], nil
	}
	return "", "", fmt.Errorf("unknown wars action %q (list|approve|deny)", args[0])
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func call(method, u string, timeout time.Duration) {
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
