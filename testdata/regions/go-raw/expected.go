package db

const query = `
SELECT id, name
FROM users
WHERE active
`
