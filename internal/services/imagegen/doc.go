// Package imagegen provides the text-to-image providers used by the images
// stage: a Hugging Face inference endpoint (raw image body) and the OpenAI
// images API (base64 JSON). Both satisfy Generator and classify failures into
// the services error taxonomy.
package imagegen
