// Package engine runs deployments: it prepares the role directory, starts a
// credential agent when a key is given and invokes ansible-playbook in the
// role directory. It also hosts the maintenance tasks (files update, example
// configuration, vagrant test machine).
package engine
