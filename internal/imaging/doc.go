// Package imaging implements the images stage: one generated still per visual
// prompt, styled by the prompt pack, with a deterministic seed per job and
// scene. Generation runs in an errgroup bounded by images.concurrency, and
// every file is checked by decoding its header before it is kept.
package imaging
