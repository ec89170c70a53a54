// Command filescleaner keeps directories under a size ceiling by deleting
// their oldest files.
//
// `filescleaner monitor` runs the polling loop in the foreground; a service
// manager is expected to supervise it. The remaining subcommands edit the
// configuration file (add, remove, enable, disable, config) or inspect state
// (status, history) without touching the running monitor.
package main
