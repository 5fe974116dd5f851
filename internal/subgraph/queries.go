package subgraph

const poolFields = `
    id
    chainId
    tick
    tickSpacing
    liquidity
    sqrtPrice
    feeTier
    hooks
    totalValueLockedUSD
    volumeUSD
    feesUSD
    txCount
    createdAtTimestamp
    token0 { id symbol decimals derivedETH }
    token1 { id symbol decimals derivedETH }
`

const poolsQuery = `
query ($chainId: BigInt!, $first: Int!) {
  Pool(
    where: { chainId: { _eq: $chainId } }
    order_by: { totalValueLockedUSD: desc }
    limit: $first
  ) {` + poolFields + `}
}
`

const poolByIDQuery = `
query ($id: String!) {
  Pool(where: { id: { _eq: $id } }, limit: 1) {` + poolFields + `}
}
`

const ticksQuery = `
query ($pool: String!, $first: Int!, $skip: Int!) {
  Tick(
    where: { pool: { _eq: $pool } }
    order_by: { tickIdx: asc }
    limit: $first
    offset: $skip
  ) {
    tickIdx
    liquidityNet
    liquidityGross
  }
}
`

const swapsQuery = `
query ($pool: String!, $since: BigInt!, $first: Int!) {
  Swap(
    where: { pool: { _eq: $pool }, timestamp: { _gt: $since } }
    order_by: { timestamp: desc }
    limit: $first
  ) {
    id
    timestamp
    amount0
    amount1
    amountUSD
    tick
    sqrtPriceX96
    origin
  }
}
`

const bundleQuery = `
query ($chainId: BigInt!) {
  Bundle(where: { chainId: { _eq: $chainId } }, limit: 1) {
    ethPriceUSD
  }
}
`
