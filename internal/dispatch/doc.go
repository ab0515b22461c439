// Package dispatch is the request pipeline shared by every tool.
//
// A tool declares an Operation (its identifier, list and path arguments) and
// an InvokeFunc. Pipeline.Wrap turns the pair into a handler that:
//
//  1. validates region, then workspace, then identifiers, identifier lists,
//     paths, required arguments and operation specific validators;
//  2. resolves the stored credential for (region, workspace);
//  3. calls the InvokeFunc, recovering panics;
//  4. returns exactly one api.Envelope.
//
// The first failing stage wins, so a call with both a bad region and a bad
// workspace is reported against "region". No stage after a failure runs, and
// in particular no remote call is made.
//
// FanOut runs one operation against many targets with a shared credential
// and per-target error isolation. Poll waits for a remote operation to finish
// and reports a timeout instead of blocking forever.
package dispatch
