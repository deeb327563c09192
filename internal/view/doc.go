// Package view renders the execution panel for the terminal
package view
