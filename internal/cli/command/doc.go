// Package command defines the jsonkeep-cli command tree on top of
// urfave/cli/v2: the store, snapshot, apikey, system and config
// groups, plus connect/disconnect/use for managing saved server
// profiles and entering the interactive session.
//
// Every action resolves its connection the same way (flags over
// environment over the profile picked by "use"), calls the server's
// HTTP API, and renders through the table/json/yaml formatters.
//
// @req RQ-0602
// @design DS-0601
package command
